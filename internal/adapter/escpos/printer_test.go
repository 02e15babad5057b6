package escpos

import (
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/YelzhanWeb/waiter/internal/config"
	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDriver() *Driver {
	cfg := config.Default().Printing
	cfg.ConnectTimeout = time.Second
	cfg.WriteTimeout = time.Second
	return NewDriver(cfg)
}

func TestPrintFramesPayload(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		b, _ := io.ReadAll(conn)
		received <- b
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	err = testDriver().Print(context.Background(), &domain.Printer{Address: host, Port: port}, []byte("Cake x2"))
	require.NoError(t, err)

	select {
	case got := <-received:
		assert.True(t, bytes.HasPrefix(got, []byte{0x1b, 0x40}))
		assert.True(t, bytes.HasSuffix(got, []byte{0x1d, 0x56, 0x00}))
		assert.Contains(t, string(got), "Cake x2")
	case <-time.After(2 * time.Second):
		t.Fatal("printer received nothing")
	}
}

func TestPrintUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	err = testDriver().Print(context.Background(), &domain.Printer{Address: "127.0.0.1", Port: addr.Port}, []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestPrintUsesDefaultPort(t *testing.T) {
	d := testDriver()
	d.defaultPort = 1

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := d.Print(ctx, &domain.Printer{Address: "127.0.0.1"}, []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}
