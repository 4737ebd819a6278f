package scheduler

import (
	"testing"

	"whatsapp_sdr_backend/platform/logger"
)

func TestAsynqLoggerFatalExits(t *testing.T) {
	code := -1
	exit = func(c int) { code = c }
	t.Cleanup(func() { exit = osExit })

	newAsynqLogger(logger.New("development")).Fatal("redis unreachable")

	if code != 1 {
		t.Errorf("expected exit status 1, got %d", code)
	}
}
