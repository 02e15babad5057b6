package domain

import (
	"encoding/base64"
	"fmt"
	"time"
)

// PrintJob is a durable unit of print work. Failed deliveries leave the job
// pending so the dispatcher retries it on its next pass.
type PrintJob struct {
	ID           int64
	PrinterID    int64
	Status       PrintJobStatus
	Payload      string
	Encoding     PayloadEncoding
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewPrintJob creates a pending job for a printer
func NewPrintJob(printerID int64, payload string, encoding PayloadEncoding) (*PrintJob, error) {
	if printerID <= 0 {
		return nil, NewValidationError("printer_id", "printer is required")
	}
	if payload == "" {
		return nil, NewValidationError("payload", "payload must not be empty")
	}
	switch encoding {
	case "":
		encoding = PayloadText
	case PayloadText:
	case PayloadBase64:
		if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
			return nil, NewValidationError("payload", "payload is not valid base64")
		}
	default:
		return nil, NewValidationError("encoding", "unknown payload encoding %q", encoding)
	}

	now := time.Now().UTC()
	return &PrintJob{
		PrinterID: printerID,
		Status:    PrintJobPending,
		Payload:   payload,
		Encoding:  encoding,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Bytes returns the raw content to send to the printer.
func (j *PrintJob) Bytes() ([]byte, error) {
	switch j.Encoding {
	case PayloadBase64:
		b, err := base64.StdEncoding.DecodeString(j.Payload)
		if err != nil {
			return nil, fmt.Errorf("decode payload of job %d: %w", j.ID, err)
		}
		return b, nil
	default:
		return []byte(j.Payload), nil
	}
}
