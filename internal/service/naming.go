package service

import (
	"Go_PanStore/config"
	"Go_PanStore/internal/apperr"
	"Go_PanStore/internal/repo"
	"Go_PanStore/model"
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// splitName splits at the final dot: "a.tar.gz" -> ("a.tar", ".gz").
// Dotfiles such as ".env" have no extension.
func splitName(name string) (base, ext string) {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		return name, ""
	}
	return name[:idx], name[idx:]
}

// numberedName renders "base (n)ext".
func numberedName(name string, n int) string {
	base, ext := splitName(name)
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}

// escapeLike escapes LIKE wildcards with '!' which both MySQL and SQLite accept as ESCAPE.
func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}

// takenNames collects active file and folder names in a folder that start with prefix.
// Names are compared in Go so that the result does not depend on the column collation.
func takenNames(tx *gorm.DB, ownerID uint64, folderID *uint64, prefix string) (map[string]bool, error) {
	pattern := escapeLike(prefix) + "%"
	var fileNames, folderNames []string

	fileQuery := tx.Model(&model.FileRecord{}).
		Where("user_id = ? AND is_deleted = ?", ownerID, false).
		Where("name LIKE ? ESCAPE '!'", pattern)
	if err := scopeFolder(fileQuery, "parent_id", folderID).Pluck("name", &fileNames).Error; err != nil {
		return nil, err
	}
	folderQuery := tx.Model(&model.FolderRecord{}).
		Where("user_id = ? AND is_deleted = ?", ownerID, false).
		Where("name LIKE ? ESCAPE '!'", pattern)
	if err := scopeFolder(folderQuery, "parent_id", folderID).Pluck("name", &folderNames).Error; err != nil {
		return nil, err
	}

	taken := make(map[string]bool, len(fileNames)+len(folderNames))
	for _, n := range fileNames {
		taken[n] = true
	}
	for _, n := range folderNames {
		taken[n] = true
	}
	return taken, nil
}

// resolveName returns candidate if free in the folder, else the first free "base (n)ext".
// Gives up after the configured number of attempts, counting the bare candidate as the first.
func resolveName(tx *gorm.DB, ownerID uint64, folderID *uint64, candidate string) (string, error) {
	base, _ := splitName(candidate)
	taken, err := takenNames(tx, ownerID, folderID, base)
	if err != nil {
		return "", err
	}
	if !taken[candidate] {
		return candidate, nil
	}
	attempts := config.Policy().NameResolveAttempts
	for n := 1; n < attempts; n++ {
		name := numberedName(candidate, n)
		if !taken[name] {
			return name, nil
		}
	}
	return "", apperr.Newf(apperr.CodeNameResolutionExhausted,
		"no free name for %q after %d attempts", candidate, attempts)
}

// ResolveName derives a name that no active file or folder of the owner uses in folderID.
func ResolveName(ctx context.Context, ownerID uint64, folderID *uint64, candidate string) (string, error) {
	name, err := validateName(candidate)
	if err != nil {
		return "", err
	}
	return resolveName(repo.Db.WithContext(ctx), ownerID, normalizeFolder(folderID), name)
}
