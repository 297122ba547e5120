package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kwayummari/ghf-approval-engine/internal/config"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	"github.com/kwayummari/ghf-approval-engine/internal/infrastructure/persistence/repository"
	"github.com/kwayummari/ghf-approval-engine/internal/infrastructure/persistence/sqlite"
)

var auditJSON bool

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "Print one JSON object per entry")
}

var auditCmd = &cobra.Command{
	Use:   "audit <request-id>",
	Short: "Print the audit trail of a request",
	Long:  "Reads the request and its audit entries straight from the database, oldest first.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAudit,
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	conn, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	db := sqlite.NewDB(conn.DB, logger)
	requests := repository.NewRequestRepository(db, logger)
	audits := repository.NewAuditRepository(db, logger, cfg.Engine.AuditPageSize)

	ctx := cmd.Context()
	req, err := requests.GetByID(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if auditJSON {
		enc := json.NewEncoder(out)
		for entry, err := range audits.ListFor(ctx, req.ID) {
			if err != nil {
				return err
			}
			if err := enc.Encode(entry); err != nil {
				return err
			}
		}
		return nil
	}

	fmt.Fprintf(out, "%s %s subject=%s status=%s stage=%d version=%d submitted_by=%s\n\n",
		req.RequestType, req.ID, req.SubjectID, req.Status, req.CurrentStageIndex, req.Version, req.SubmittedBy)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tTIME\tACTOR\tACTION\tSTAGE\tCOMMENT")
	for entry, err := range audits.ListFor(ctx, req.ID) {
		if err != nil {
			return err
		}
		writeAuditRow(w, entry)
	}
	return w.Flush()
}

func writeAuditRow(w *tabwriter.Writer, entry *entity.AuditEntry) {
	stage := entry.StageNameAtTime
	if stage == "" {
		stage = "-"
	}
	fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
		entry.SequenceNumber,
		entry.Timestamp.UTC().Format(time.RFC3339),
		entry.ActorID,
		entry.Action,
		stage,
		entry.Comment,
	)
}
