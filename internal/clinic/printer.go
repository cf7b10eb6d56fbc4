package clinic

import (
	"context"
	"log/slog"

	checkinmodels "medkiosk/internal/checkin/models"
)

// LogPrinter writes the receipt to the structured log. It stands in until a
// hardware printer adapter is wired; receipt content is identical either
// way.
type LogPrinter struct {
	logger *slog.Logger
}

func NewLogPrinter(logger *slog.Logger) *LogPrinter {
	return &LogPrinter{logger: logger}
}

func (p *LogPrinter) PrintReceipt(ctx context.Context, record *checkinmodels.CheckInRecord) error {
	p.logger.InfoContext(ctx, "receipt printed",
		"check_in_id", record.ID,
		"patient", record.PatientName,
		"position", record.QueuePosition,
		"estimated_wait_minutes", record.EstimatedWaitMinutes,
	)
	return nil
}
