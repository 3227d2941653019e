package minecraft

import (
	"context"
	"time"

	"github.com/gorcon/rcon"

	apperrors "cogbot/backend/pkg/errors"
)

// Executor runs one console command on the server
type Executor interface {
	Execute(ctx context.Context, command string) (string, error)
}

// RCON dials the server for every command, like the console tools do
type RCON struct {
	addr     string
	password string
	timeout  time.Duration
}

// NewRCON creates an executor for the RCON endpoint at addr
func NewRCON(addr, password string, timeout time.Duration) *RCON {
	return &RCON{addr: addr, password: password, timeout: timeout}
}

func (r *RCON) Execute(ctx context.Context, command string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperrors.NewRCONCommandFailed(command, err)
	}

	conn, err := rcon.Dial(r.addr, r.password, rcon.SetDialTimeout(r.timeout), rcon.SetDeadline(r.timeout))
	if err != nil {
		return "", apperrors.NewRCONCommandFailed(command, err)
	}
	defer conn.Close()

	resp, err := conn.Execute(command)
	if err != nil {
		return "", apperrors.NewRCONCommandFailed(command, err)
	}
	return resp, nil
}
