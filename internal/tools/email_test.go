package tools

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/rahul/workbench/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestEmailTool_Mocked(t *testing.T) {
	tool := NewEmailTool(config.EmailConfig{From: "bot@example.com"})
	res, err := tool.Execute(context.Background(), Input{"to": "x@y.com", "subject": "Hi", "body": "text"})
	require.NoError(t, err)
	require.Equal(t, "mocked", res["status"])
	require.Equal(t, "x@y.com", res["to"])
	require.Equal(t, "bot@example.com", res["from"])
}

func TestEmailTool_DeliveryErrorIsData(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	tool := NewEmailTool(config.EmailConfig{
		From:     "bot@example.com",
		Host:     "127.0.0.1",
		Port:     port,
		Security: "none",
		Enabled:  true,
	})
	res, err := tool.Execute(context.Background(), Input{"to": "x@y.com", "subject": "Hi", "body": "text"})
	require.NoError(t, err)
	require.Equal(t, "error", res["status"])
	require.Equal(t, port, res["port"])
	require.Contains(t, res["error"], "connect smtp")
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("a@b.c", "x@y.com", "Report", "line one\nline two"))
	require.True(t, strings.HasPrefix(msg, "From: a@b.c\r\n"))
	require.Contains(t, msg, "Subject: Report\r\n")
	require.Contains(t, msg, "line one\r\nline two")
	require.NotContains(t, msg, "one\nline")
}
