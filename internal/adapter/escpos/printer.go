// Package escpos delivers print jobs to network thermal printers that speak
// ESC/POS on a raw TCP port.
package escpos

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/YelzhanWeb/waiter/internal/config"
	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/YelzhanWeb/waiter/internal/interfaces"
)

// ESC @ resets the printer, GS V 0 is a full cut.
var (
	cmdInit    = []byte{0x1b, 0x40}
	cmdFeed    = []byte("\n\n\n")
	cmdFullCut = []byte{0x1d, 0x56, 0x00}
)

type Driver struct {
	dialer       net.Dialer
	writeTimeout time.Duration
	defaultPort  int
}

var _ interfaces.PrinterDriver = (*Driver)(nil)

func NewDriver(cfg config.PrintingConfig) *Driver {
	return &Driver{
		dialer:       net.Dialer{Timeout: cfg.ConnectTimeout},
		writeTimeout: cfg.WriteTimeout,
		defaultPort:  cfg.DefaultPort,
	}
}

// Print opens a fresh connection, sends one job and closes it. The printer
// is considered to have accepted the job once every byte is written.
func (d *Driver) Print(ctx context.Context, printer *domain.Printer, payload []byte) error {
	port := printer.Port
	if port == 0 {
		port = d.defaultPort
	}
	addr := net.JoinHostPort(printer.Address, strconv.Itoa(port))

	conn, err := d.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("printer %s unreachable: %w", addr, err)
	}
	defer conn.Close()

	if d.writeTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(d.writeTimeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	msg := make([]byte, 0, len(cmdInit)+len(payload)+len(cmdFeed)+len(cmdFullCut))
	msg = append(msg, cmdInit...)
	msg = append(msg, payload...)
	msg = append(msg, cmdFeed...)
	msg = append(msg, cmdFullCut...)

	if _, err := conn.Write(msg); err != nil {
		return fmt.Errorf("failed to write to printer %s: %w", addr, err)
	}
	return nil
}
