package supervisor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeMapsNilToZero(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
}

func TestExitCodeMapsAnyErrorToOne(t *testing.T) {
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
}

func TestPIDReturnsProcessID(t *testing.T) {
	s := &Supervisor{pid: 4242}
	assert.Equal(t, 4242, s.PID())
}
