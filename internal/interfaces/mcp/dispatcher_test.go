package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

func echoDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d := NewDispatcher(nil, nil)
	require.NoError(t, d.Register(Tool{
		Name: "echo",
		InputSchema: ObjectSchema(map[string]Property{
			"name":  stringProp("who"),
			"times": intProp("repeat", 1, 1, 3),
			"loud":  {Type: TypeBoolean},
			"mode":  enumProp("mode", "plain", "plain", "fancy"),
		}, "name"),
		Handler: func(_ context.Context, args Args) (interface{}, error) {
			return map[string]interface{}{"name": args.String("name"), "times": args.Int("times"), "mode": args.String("mode")}, nil
		},
	}))
	require.NoError(t, d.Register(Tool{
		Name: "fail",
		Handler: func(context.Context, Args) (interface{}, error) {
			return nil, errors.BadQuery("no such column: x")
		},
	}))
	require.NoError(t, d.Register(Tool{
		Name: "boom",
		Handler: func(context.Context, Args) (interface{}, error) {
			panic("nil map")
		},
	}))
	return d
}

func TestSchema_Validate(t *testing.T) {
	schema := ObjectSchema(map[string]Property{
		"applicant_name": stringProp("name"),
		"top_n":          intProp("n", 5, 1, 20),
		"exact":          {Type: TypeBoolean},
	}, "applicant_name")

	args, err := schema.Validate(map[string]interface{}{"applicant_name": "  Acme ", "top_n": float64(7)})
	require.NoError(t, err)
	assert.Equal(t, "Acme", args.String("applicant_name"))
	assert.Equal(t, 7, args.Int("top_n"))
	assert.False(t, args.Has("exact"))

	args, err = schema.Validate(map[string]interface{}{"applicant_name": "Acme", "top_n": json.Number("3")})
	require.NoError(t, err)
	assert.Equal(t, 3, args.Int("top_n"))

	args, err = schema.Validate(map[string]interface{}{"applicant_name": "Acme"})
	require.NoError(t, err)
	assert.Equal(t, 5, args.Int("top_n"), "default applied")
}

func TestSchema_ValidateEnumeratesProblems(t *testing.T) {
	schema := ObjectSchema(map[string]Property{
		"applicant_name": stringProp("name"),
		"top_n":          intProp("n", 5, 1, 20),
		"exact":          {Type: TypeBoolean},
	}, "applicant_name")

	_, err := schema.Validate(map[string]interface{}{"top_n": 2.5, "exact": "yes", "extra": 1})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArguments))
	msg := err.Error()
	assert.Contains(t, msg, `missing required field "applicant_name"`)
	assert.Contains(t, msg, `field "top_n" must be an integer`)
	assert.Contains(t, msg, `field "exact" must be a boolean`)
	assert.Contains(t, msg, `unknown field "extra"`)

	_, err = schema.Validate(map[string]interface{}{"applicant_name": " ", "top_n": 21})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "applicant_name" must not be empty`)
	assert.Contains(t, err.Error(), `field "top_n" must be <= 20`)
}

func TestDispatcher_Execute(t *testing.T) {
	d := echoDispatcher(t)

	env := d.Execute(context.Background(), "echo", map[string]interface{}{"name": "acme"})
	require.True(t, env.Success)
	assert.Equal(t, "echo", env.Tool)
	assert.Equal(t, map[string]interface{}{"name": "acme", "times": 1, "mode": "plain"}, env.Response)
	assert.NoError(t, env.Err())

	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"tool":"echo","response":{"name":"acme","times":1,"mode":"plain"}}`, string(data))
}

func TestDispatcher_Failures(t *testing.T) {
	d := echoDispatcher(t)
	tests := []struct {
		tool string
		args map[string]interface{}
		kind string
	}{
		{"nope", nil, "UnknownTool"},
		{"echo", map[string]interface{}{"mode": "loud"}, "InvalidArguments"},
		{"fail", nil, "BadQuery"},
		{"boom", nil, "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			env := d.Execute(context.Background(), tt.tool, tt.args)
			assert.False(t, env.Success)
			assert.Nil(t, env.Response)
			assert.Equal(t, tt.kind, env.ErrorKind)
			assert.NotEmpty(t, env.Error)
			assert.Error(t, env.Err())
		})
	}

	env := d.Execute(context.Background(), "nope", nil)
	assert.Contains(t, env.Error, "boom, echo, fail")
}

func TestDispatcher_CancelledBeforeHandler(t *testing.T) {
	d := echoDispatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	env := d.Execute(ctx, "echo", map[string]interface{}{"name": "x"})
	assert.Equal(t, "Cancelled", env.ErrorKind)
}

func TestDispatcher_RegisterRejectsDuplicates(t *testing.T) {
	d := echoDispatcher(t)
	err := d.Register(Tool{Name: "echo", Handler: func(context.Context, Args) (interface{}, error) { return nil, nil }})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArguments))

	names := []string{}
	for _, tool := range d.Tools() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"boom", "echo", "fail"}, names)
}

func TestDispatcher_ReadResource(t *testing.T) {
	d := NewDispatcher(nil, nil)
	require.NoError(t, d.RegisterResource(Resource{
		URI:  "patent://x",
		Read: func(context.Context) (interface{}, error) { return []int{1}, nil },
	}))

	env := d.ReadResource(context.Background(), "patent://x")
	require.True(t, env.Success)
	assert.Equal(t, []int{1}, env.Response)
	assert.Equal(t, "application/json", d.Resources()[0].MimeType)

	env = d.ReadResource(context.Background(), "patent://missing")
	assert.Equal(t, "UnknownResource", env.ErrorKind)
}
