package processes

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct {
	logs []string
}

func (m *mockLogger) Info(format string, v ...interface{}) {
	m.logs = append(m.logs, "INFO: "+fmt.Sprintf(format, v...))
}

func (m *mockLogger) Debug(format string, v ...interface{}) {
	m.logs = append(m.logs, "DEBUG: "+fmt.Sprintf(format, v...))
}

func (m *mockLogger) Error(format string, v ...interface{}) {
	m.logs = append(m.logs, "ERROR: "+fmt.Sprintf(format, v...))
}

func TestNewManager(t *testing.T) {
	logger := &mockLogger{}

	m := NewManager(logger)

	require.NotNil(t, m)
	assert.Equal(t, logger, m.logger)
}

func TestManager_List(t *testing.T) {
	m := NewManager(&mockLogger{})

	infos, err := m.List()

	require.NoError(t, err)
	assert.NotEmpty(t, infos)
	// sorted by name
	for i := 1; i < len(infos); i++ {
		assert.LessOrEqual(t, infos[i-1].Name, infos[i].Name)
	}
}
