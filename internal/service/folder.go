package service

import (
	"Go_PanStore/config"
	"Go_PanStore/internal/apperr"
	"Go_PanStore/internal/dto"
	"Go_PanStore/internal/metrics"
	"Go_PanStore/internal/repo"
	"Go_PanStore/model"
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateFolder creates a folder, renaming it to "name (n)" if the name is taken.
func CreateFolder(ctx context.Context, ownerID uint64, parentID *uint64, name string) (*model.FolderRecord, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	parentID = normalizeFolder(parentID)

	var folder *model.FolderRecord
	err = withOwnerLock(ctx, ownerID, func(tx *gorm.DB, _ *model.UserQuota) error {
		if err := activeFolder(tx, ownerID, parentID); err != nil {
			return err
		}
		finalName, err := resolveName(tx, ownerID, parentID, name)
		if err != nil {
			return err
		}
		folder = &model.FolderRecord{
			UserID:   ownerID,
			ParentID: parentID,
			Name:     finalName,
		}
		return tx.Create(folder).Error
	})
	if err != nil {
		return nil, err
	}
	invalidateFileListCache(ctx, ownerID)
	return folder, nil
}

// ListFolders lists the active subfolders of parentID (nil = root) by name.
func ListFolders(ctx context.Context, ownerID uint64, parentID *uint64) ([]model.FolderRecord, error) {
	var folders []model.FolderRecord
	query := repo.Db.WithContext(ctx).
		Where("user_id = ? AND is_deleted = ?", ownerID, false)
	err := scopeFolder(query, "parent_id", normalizeFolder(parentID)).
		Order("name ASC, id ASC").
		Find(&folders).Error
	return folders, err
}

// cascadeNode is a folder discovered by the cascade walk.
type cascadeNode struct {
	folder model.FolderRecord
	path   string
}

// collectSubtree walks the active subtree under root with an explicit stack and
// returns folders in discovery order, root first.
func collectSubtree(tx *gorm.DB, root model.FolderRecord, rootPath string) ([]cascadeNode, error) {
	nodes := []cascadeNode{}
	stack := []cascadeNode{{folder: root, path: rootPath}}
	seen := map[uint64]bool{}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[node.folder.ID] {
			continue
		}
		seen[node.folder.ID] = true
		nodes = append(nodes, node)

		var children []model.FolderRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND parent_id = ? AND is_deleted = ?", root.UserID, node.folder.ID, false).
			Order("id ASC").
			Find(&children).Error; err != nil {
			return nil, err
		}
		for _, child := range children {
			stack = append(stack, cascadeNode{folder: child, path: joinPath(node.path, child.Name)})
		}
	}
	return nodes, nil
}

// DeleteFolder moves a folder and its whole active subtree to the recycle bin.
// Every file and descendant folder gets its own recycle entry and each file credits
// its bytes back; the target folder is recycled last. All of it is one transaction.
func DeleteFolder(ctx context.Context, folderID, ownerID uint64) (*dto.CascadeResult, error) {
	var target model.FolderRecord
	if err := repo.Db.WithContext(ctx).Where("id = ?", folderID).First(&target).Error; err != nil {
		return nil, notFound(err, "folder %d not found", folderID)
	}
	if target.UserID != ownerID {
		return nil, apperr.Newf(apperr.CodeForbidden, "folder %d belongs to another owner", folderID)
	}
	if target.IsDeleted {
		return nil, apperr.Newf(apperr.CodeNotFound, "folder %d not found", folderID)
	}

	result := &dto.CascadeResult{}
	err := withOwnerLock(ctx, ownerID, func(tx *gorm.DB, quota *model.UserQuota) error {
		var root model.FolderRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ? AND is_deleted = ?", folderID, ownerID, false).
			First(&root).Error; err != nil {
			return notFound(err, "folder %d not found", folderID)
		}
		parentPath, err := folderPath(tx, root.ParentID)
		if err != nil {
			return err
		}
		nodes, err := collectSubtree(tx, root, joinPath(parentPath, root.Name))
		if err != nil {
			return err
		}

		now := nowFunc()
		// deepest discoveries first, so contents always go before their folder
		for i := len(nodes) - 1; i >= 0; i-- {
			node := nodes[i]
			var files []model.FileRecord
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("user_id = ? AND parent_id = ? AND is_deleted = ?", ownerID, node.folder.ID, false).
				Order("id ASC").
				Find(&files).Error; err != nil {
				return err
			}
			for j := range files {
				file := &files[j]
				if _, err := recycleFileTx(tx, quota, file, ownerID, joinPath(node.path, file.Name), now); err != nil {
					return err
				}
				result.Files++
				result.FreedBytes += file.Size
			}
			if err := recycleFolderTx(tx, &node.folder, ownerID, node.path, now); err != nil {
				return err
			}
			result.Folders++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m := metrics.Get()
	m.ItemsRecycled.WithLabelValues(model.RecycleItemFile).Add(float64(result.Files))
	m.ItemsRecycled.WithLabelValues(model.RecycleItemFolder).Add(float64(result.Folders))
	invalidateFileListCache(ctx, ownerID)
	return result, nil
}

func recycleFolderTx(tx *gorm.DB, folder *model.FolderRecord, deletedBy uint64, originalPath string, now time.Time) error {
	res := tx.Model(&model.FolderRecord{}).
		Where("id = ? AND is_deleted = ?", folder.ID, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Newf(apperr.CodeNotFound, "folder %d not found", folder.ID)
	}
	folderID := folder.ID
	return tx.Create(&model.RecycleEntry{
		UserID:       folder.UserID,
		FolderID:     &folderID,
		ItemType:     model.RecycleItemFolder,
		Name:         folder.Name,
		OriginalPath: originalPath,
		DeletedBy:    deletedBy,
		DeletedAt:    now,
		ExpiresAt:    now.Add(config.Policy().RecycleRetention),
	}).Error
}
