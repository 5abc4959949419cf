package main

import (
	"Go_PanStore/internal/dto"
	"Go_PanStore/internal/mq"
	"Go_PanStore/internal/service"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Purge recycle-bin entries whose retention has expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := service.CleanupExpiredItems(cmd.Context())
			if err != nil {
				return err
			}
			if result.Skipped {
				fmt.Println("another instance holds the sweep lock, nothing done")
				return nil
			}
			fmt.Printf("scanned %d, purged %d, failed %d, orphaned blobs %d\n",
				result.Scanned, result.Purged, result.Failed, result.BlobFailures)
			return nil
		},
	}
}

func newReconcileCmd() *cobra.Command {
	var owner uint64
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute usage counters from the active files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner != 0 {
				used, err := service.ReconcileUsage(cmd.Context(), owner)
				if err != nil {
					return err
				}
				fmt.Printf("owner %d uses %d bytes\n", owner, used)
				return nil
			}
			n, err := service.ReconcileAllUsage(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("reconciled %d owners\n", n)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&owner, "owner", 0, "reconcile only this owner")
	return cmd
}

func newQuotaCmd() *cobra.Command {
	quotaCmd := &cobra.Command{
		Use:   "quota",
		Short: "Inspect or change storage quotas",
	}

	var owner uint64
	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show an owner's usage and ceiling",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := service.GetQuota(cmd.Context(), owner)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "OWNER\tUSED\tTOTAL\tAVAILABLE\tUSED%")
			fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%.1f\n", info.OwnerID, info.Used, info.Total, info.Available, info.UsagePercent)
			return w.Flush()
		},
	}
	getCmd.Flags().Uint64Var(&owner, "owner", 0, "owner id")
	_ = getCmd.MarkFlagRequired("owner")
	quotaCmd.AddCommand(getCmd)

	var setOwner uint64
	var bytes int64
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Set an owner's quota ceiling in bytes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := service.SetQuotaCeiling(cmd.Context(), setOwner, bytes); err != nil {
				return err
			}
			log.Info().Uint64("owner_id", setOwner).Int64("bytes", bytes).Msg("quota ceiling updated")
			return nil
		},
	}
	setCmd.Flags().Uint64Var(&setOwner, "owner", 0, "owner id")
	setCmd.Flags().Int64Var(&bytes, "bytes", 0, "ceiling in bytes")
	_ = setCmd.MarkFlagRequired("owner")
	_ = setCmd.MarkFlagRequired("bytes")
	quotaCmd.AddCommand(setCmd)

	return quotaCmd
}

func newPublishSweepCmd() *cobra.Command {
	var owner uint64
	cmd := &cobra.Command{
		Use:   "publish-sweep",
		Short: "Queue a sweep for the worker; with --owner, empty that owner's bin",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dto.SweepRequest{Kind: dto.SweepKindExpired}
			if owner != 0 {
				req = dto.SweepRequest{Kind: dto.SweepKindEmptyBin, OwnerID: owner}
			}
			if err := mq.PublishSweep(cmd.Context(), req); err != nil {
				return err
			}
			fmt.Printf("queued %s sweep\n", req.Kind)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&owner, "owner", 0, "empty this owner's recycle bin instead")
	return cmd
}
