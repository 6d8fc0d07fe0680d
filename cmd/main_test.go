package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-sync/internal/domain/entity"
)

func TestParseSyncKind(t *testing.T) {
	tests := []struct {
		arg     string
		want    entity.SyncKind
		wantErr bool
	}{
		{arg: "companies", want: entity.SyncKindCompanies},
		{arg: "custom-fields", want: entity.SyncKindCustomFields},
		{arg: "custom_fields", want: entity.SyncKindCustomFields},
		{arg: "contacts", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseSyncKind(tt.arg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSyncCommandRequiresKind(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"sync"})

	require.Error(t, root.Execute())
}

func TestSyncCommandRejectsUnknownKind(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"sync", "contacts"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sync kind")
}
