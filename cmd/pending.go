package cmd

import (
	"fmt"

	"arxcore/core/entity"
	"arxcore/core/objectstore"
	"arxcore/core/pending"

	"github.com/spf13/cobra"
)

var (
	pendingStatus     string
	pendingPosition   string
	pendingConfidence string
	pendingSource     string
	pendingNote       string
	pendingBy         string
	pendingReason     string
)

// pendingCmd is the parent command for equipment proposal operations.
var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Manage equipment proposals",
	Long: `Equipment proposals are low-confidence observations (field scans, AR
captures) waiting for review. They stay outside the committed history
and never show up in queries. Confirming a proposal stages an equipment
add; commit it explicitly to make it visible.`,
}

// pendingListCmd prints proposals, optionally filtered by status.
var pendingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List proposals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		reg, err := pending.Load(s.store.Dir())
		if err != nil {
			return err
		}
		proposals := reg.List(pending.Status(pendingStatus))
		if len(proposals) == 0 {
			fmt.Println("no proposals")
			return nil
		}
		for _, p := range proposals {
			fmt.Printf("%s  %-9s  %-6s  %s\n", p.ID, p.Status, p.Confidence, p.Path)
			if p.Note != "" {
				fmt.Printf("%36s  %s\n", "", p.Note)
			}
		}
		return nil
	},
}

// pendingAddCmd records a new proposal.
var pendingAddCmd = &cobra.Command{
	Use:   "add <address>",
	Short: "Submit an equipment proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		reg, err := pending.Load(s.store.Dir())
		if err != nil {
			return err
		}
		pos, err := parsePoint(pendingPosition)
		if err != nil {
			return err
		}
		p, err := reg.Add(args[0], pos, entity.Confidence(pendingConfidence), pendingSource, pendingNote)
		if err != nil {
			return err
		}
		fmt.Println(p.ID)
		return nil
	},
}

// pendingConfirmCmd promotes a proposal and stages the equipment add.
var pendingConfirmCmd = &cobra.Command{
	Use:   "confirm <id>",
	Short: "Confirm a proposal and stage the equipment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		reg, err := pending.Load(s.store.Dir())
		if err != nil {
			return err
		}
		e, err := reg.Confirm(args[0], pendingBy)
		if err != nil {
			return err
		}
		if err := s.store.Stage(&objectstore.Mutation{
			Op:     objectstore.MutationAdd,
			Path:   e.Path,
			Entity: e,
		}); err != nil {
			return err
		}
		fmt.Printf("staged %s\n", e.Path)
		return nil
	},
}

// pendingRejectCmd discards a proposal.
var pendingRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		reg, err := pending.Load(s.store.Dir())
		if err != nil {
			return err
		}
		return reg.Reject(args[0], pendingBy, pendingReason)
	},
}

func init() {
	pendingListCmd.Flags().StringVar(&pendingStatus, "status", "", "Filter by status (pending, confirmed, rejected)")

	pendingAddCmd.Flags().StringVar(&pendingPosition, "position", "", "Observed position as x,y,z in metres")
	pendingAddCmd.Flags().StringVar(&pendingConfidence, "confidence", string(entity.ConfidenceLow), "Provenance confidence")
	pendingAddCmd.Flags().StringVar(&pendingSource, "source", "cli", "Submitting source name")
	pendingAddCmd.Flags().StringVar(&pendingNote, "note", "", "Free-text note")
	_ = pendingAddCmd.MarkFlagRequired("position")

	pendingConfirmCmd.Flags().StringVar(&pendingBy, "by", "", "Who decided")
	pendingRejectCmd.Flags().StringVar(&pendingBy, "by", "", "Who decided")
	pendingRejectCmd.Flags().StringVar(&pendingReason, "reason", "", "Why the proposal was rejected")

	pendingCmd.AddCommand(pendingListCmd)
	pendingCmd.AddCommand(pendingAddCmd)
	pendingCmd.AddCommand(pendingConfirmCmd)
	pendingCmd.AddCommand(pendingRejectCmd)
	RootCmd.AddCommand(pendingCmd)
}
