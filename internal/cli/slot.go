package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/olette/pkg/graph"
	"github.com/matzehuels/olette/pkg/store"
)

// slotCommand creates the slot management command.
func (c *CLI) slotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slot",
		Short: "Manage the persisted session slot",
	}

	cmd.AddCommand(c.slotShowCommand())
	cmd.AddCommand(c.slotClearCommand())
	cmd.AddCommand(c.slotPathCommand())

	return cmd
}

// slotShowCommand creates the "slot show" subcommand.
func (c *CLI) slotShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show what the slot holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			slot, st, err := c.openSlot(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			rec, err := slot.Record(ctx)
			if err != nil {
				return err
			}
			if rec == nil {
				printInfo("Slot %s is empty", StyleHighlight.Render(slot.Name()))
				return nil
			}

			printKeyValue("Slot", slot.Name())
			printKeyValue("Backend", store.BackendName(st))
			printKeyValue("Updated", rec.UpdatedAt.Format(time.RFC3339))
			printKeyValue("Expires", rec.ExpiresAt.Format(time.RFC3339))

			g, err := graph.Unmarshal(rec.Snapshot)
			if err != nil {
				printWarning("Snapshot is unreadable: %v", err)
				return nil
			}
			printKeyValue("Nodes", fmt.Sprint(len(g.Nodes)))
			printKeyValue("Links", fmt.Sprint(len(g.Links)))
			printKeyValue("Reducible", fmt.Sprint(len(g.Reducible())))
			return nil
		},
	}
}

// slotClearCommand creates the "slot clear" subcommand.
func (c *CLI) slotClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			slot, st, err := c.openSlot(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := slot.Clear(ctx); err != nil {
				return err
			}
			printSuccess("Cleared slot %s", StyleHighlight.Render(slot.Name()))
			return nil
		},
	}
}

// slotPathCommand creates the "slot path" subcommand.
func (c *CLI) slotPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where the slot is stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			fmt.Println(slotLocation(cfg.Store, cfg.Session.Slot))
			return nil
		},
	}
}

// slotLocation describes where the slot lives for the configured backend.
func slotLocation(cfg store.Config, name string) string {
	switch cfg.Backend {
	case "", store.BackendFile:
		dir := cfg.Dir
		if dir == "" {
			d, err := store.DefaultDir()
			if err != nil {
				return name
			}
			dir = d
		}
		return store.RecordFile(dir, name)
	case store.BackendRedis:
		return fmt.Sprintf("redis://%s/%d %s", cfg.RedisAddr, cfg.RedisDB, store.DefaultRedisPrefix+name)
	case store.BackendMongo:
		return fmt.Sprintf("%s %s.%s _id=%s", cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, name)
	}
	return fmt.Sprintf("%s:%s", cfg.Backend, name)
}
