package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStructureOnly(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	out, _, err := execute(cmd, queriesDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 2 query document(s) valid (structure only; no schema given)")
}

func TestValidateWithSchema(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	out, _, err := execute(cmd, filepath.Join(queriesDir, "posts_per_user.yaml"), "--schema", blogYAML)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.True(t, resp.Data.Built)
	assert.Equal(t, 1, resp.Data.Checked)
}

func TestValidateReportsEveryFile(t *testing.T) {
	fs := memFs(t)
	files := map[string]string{
		"/q/a_ok.yaml":      "from: {table: BlogUser, as: u}\nproject: [u.username]\n",
		"/q/b_typo.yaml":    "from: {table: BlogUser}\nprojct: [BlogUser.id]\n",
		"/q/c_unbound.yaml": "from: {table: BlogUser, as: u}\nproject: [post.title]\n",
		"/q/notes.txt":      "ignored",
	}
	for path, body := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(body), 0644))
	}

	t.Run("text", func(t *testing.T) {
		cmd := NewValidateCommand(&RootOptions{Format: "text", Fs: fs})
		out, _, err := execute(cmd, "/q", "--schema", "/schema/blog.yaml")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "✗ Validation failed")
		assert.Contains(t, out, "/q/b_typo.yaml\n  E202:")
		assert.Contains(t, out, "/q/c_unbound.yaml\n  E205:")
		assert.NotContains(t, out, "a_ok")
	})

	t.Run("json", func(t *testing.T) {
		cmd := NewValidateCommand(&RootOptions{Format: "json", Fs: fs})
		out, _, err := execute(cmd, "/q", "--schema", "/schema/blog.yaml")
		require.Error(t, err)

		var resp struct {
			Status string           `json:"status"`
			Data   ValidationResult `json:"data"`
			Error  *CLIError        `json:"error"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, "error", resp.Status)
		assert.Equal(t, 3, resp.Data.Checked)
		require.Len(t, resp.Data.Errors, 2)
		assert.Equal(t, ErrCodeQueryDoc, resp.Error.Code)
		assert.Equal(t, map[string]any{"kind": "UNBOUND_NAME", "name": "post", "bound": []any{"u"}}, resp.Data.Errors[1].Details)
	})

	t.Run("structure only", func(t *testing.T) {
		cmd := NewValidateCommand(&RootOptions{Format: "json", Fs: fs})
		out, _, err := execute(cmd, "/q")
		require.Error(t, err)
		var resp struct {
			Data ValidationResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		require.Len(t, resp.Data.Errors, 1, "names are only checked against a schema")
		assert.Equal(t, "/q/b_typo.yaml", resp.Data.Errors[0].File)
	})
}

func TestValidateMissingPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/empty", 0755))

	for _, path := range []string{"/missing", "/empty"} {
		t.Run(path, func(t *testing.T) {
			cmd := NewValidateCommand(&RootOptions{Format: "text", Fs: fs})
			out, _, err := execute(cmd, path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error [E201]")
		})
	}
}
