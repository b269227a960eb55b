package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaFromFile(t *testing.T) {
	cmd := NewSchemaCommand(&RootOptions{Format: "text"})
	out, _, err := execute(cmd, "--schema", blogCUE)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ 2 table(s)")
	assert.Contains(t, out, "BlogPost (blog_post)\n")
	assert.Contains(t, out, "  id int pk\n")
	assert.Contains(t, out, "  user user_id int -> BlogUser.id\n")
	assert.Contains(t, out, "  published timestamp null\n")
}

func TestSchemaIntrospectedJSON(t *testing.T) {
	cmd := NewSchemaCommand(&RootOptions{Format: "json"})
	out, _, err := execute(cmd, "--db", blogDB(t))
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Tables []SchemaTable `json:"tables"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Tables, 2)

	post := resp.Data.Tables[0]
	assert.Equal(t, "blog_post", post.Name)
	assert.Equal(t, []string{"id"}, post.PrimaryKey)
	require.Len(t, post.ForeignKeys, 1)
	assert.Equal(t, "blog_user", post.ForeignKeys[0].RefTable)
}

func TestSchemaRequiresSource(t *testing.T) {
	cmd := NewSchemaCommand(&RootOptions{Format: "text"})
	out, _, err := execute(cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E203]")
}
