package source_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/mminstall/pkg/mminstall/source"
)

func TestFieldsSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fields  source.Fields
		want    source.Source
		wantKey string
		wantErr bool
	}{
		{
			name:    "direct",
			fields:  source.Fields{Type: source.KindDirect, URL: "https://example.com/a.jar"},
			want:    source.Direct{URL: "https://example.com/a.jar"},
			wantKey: "direct:https://example.com/a.jar",
		},
		{
			name:    "modrinth",
			fields:  source.Fields{Type: source.KindModrinth, ProjectID: "AANobbMI", FileID: "4Tk0rSNE"},
			want:    source.Repository{ProjectID: "AANobbMI", FileID: "4Tk0rSNE"},
			wantKey: "repo:AANobbMI:4Tk0rSNE",
		},
		{
			name:    "curseforge",
			fields:  source.Fields{Type: source.KindCurseForge, ProjectID: "238222", FileID: "4593548"},
			want:    source.CurseForge{ProjectID: "238222", FileID: "4593548"},
			wantKey: "cf:238222:4593548",
		},
		{name: "direct without url", fields: source.Fields{Type: source.KindDirect}, wantErr: true},
		{name: "modrinth without file", fields: source.Fields{Type: source.KindModrinth, ProjectID: "p"}, wantErr: true},
		{name: "curseforge non numeric", fields: source.Fields{Type: source.KindCurseForge, ProjectID: "abc", FileID: "1"}, wantErr: true},
		{name: "missing type", fields: source.Fields{URL: "https://example.com"}, wantErr: true},
		{name: "unknown type", fields: source.Fields{Type: "github"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.fields.Source()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantKey, got.Key())
			assert.Equal(t, tt.fields, source.FieldsOf(got))
		})
	}
}

func TestUnknownKindSentinel(t *testing.T) {
	t.Parallel()
	_, err := source.Fields{Type: "github"}.Source()
	assert.ErrorIs(t, err, source.ErrUnknownKind)
}

func TestIDAcceptsNumbers(t *testing.T) {
	t.Parallel()

	var y source.Fields
	require.NoError(t, yaml.Unmarshal([]byte("type: curseforge\nprojectId: 238222\nfileId: \"4593548\"\n"), &y))
	assert.Equal(t, source.ID("238222"), y.ProjectID)
	assert.Equal(t, source.ID("4593548"), y.FileID)

	var j source.Fields
	require.NoError(t, json.Unmarshal([]byte(`{"type":"curseforge","projectId":238222,"fileId":"4593548"}`), &j))
	assert.Equal(t, y, j)

	var bad source.Fields
	assert.Error(t, json.Unmarshal([]byte(`{"type":"curseforge","projectId":[1]}`), &bad))
	assert.Error(t, yaml.Unmarshal([]byte("type: curseforge\nprojectId: [1]\n"), &bad))
}
