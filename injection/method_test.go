package injection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodByName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"loadlibrary", "loadlibrary"},
		{"load-library", "loadlibrary"},
		{"standard", "loadlibrary"},
		{"LoadLibrary", "loadlibrary"},
		{" manualmap ", "manualmap"},
		{"manual-map", "manualmap"},
	}

	for _, tt := range tests {
		method, err := MethodByName(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, method.Name())
	}
}

func TestMethodByName_Unknown(t *testing.T) {
	_, err := MethodByName("reflective")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reflective")

	_, err = MethodByName("")
	assert.Error(t, err)
}

func TestMethods_AccessRights(t *testing.T) {
	for _, method := range []Method{LoadLibrary(), ManualMap()} {
		access := method.Access()
		assert.NotZero(t, access&AccessCreateThread, method.Name())
		assert.NotZero(t, access&AccessVMOperation, method.Name())
		assert.NotZero(t, access&AccessVMWrite, method.Name())
	}
}
