package syncid

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	assert.Equal(t, "", Encode(nil))
	assert.Equal(t, "", Encode(ID{}))
	assert.Equal(t, "42", Encode(ID{42}))
	assert.Equal(t, "42,7", Encode(ID{42, 7}))
	assert.Equal(t, "0,0,1", Encode(ID{0, 0, 1}))
}

func TestRoundTrip(t *testing.T) {
	ids := []ID{
		{},
		{0},
		{1, 2, 3},
		{42, 7},
		{255, 0, 17, 128, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 100},
		{1 << 30},
	}
	for _, id := range ids {
		got := DecodeLossy(Encode(id))
		assert.True(t, id.Equal(got), "round trip of %v gave %v", id, got)
	}
}

func TestDecodeLossy(t *testing.T) {
	tests := []struct {
		in   string
		want ID
	}{
		{"3,x,5", ID{3, 5}},
		{"", ID{}},
		{"abc", ID{}},
		{"1,,2", ID{1, 2}},
		{"1,-4,2", ID{1, 2}},
		{" 8 , 9", ID{8, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := DecodeLossy(tt.in)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeStrict(t *testing.T) {
	id, err := DecodeStrict("42,7", 2)
	require.NoError(t, err)
	assert.Equal(t, ID{42, 7}, id)

	_, err = DecodeStrict("42,7", 3)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodeStrict("3,x,5", 0)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodeStrict("", 0)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodeStrict("1,-2", 0)
	assert.ErrorIs(t, err, ErrMalformed)

	for _, s := range []string{"007", "+3", "1, 2", "1,,2", "4,"} {
		_, err = DecodeStrict(s, 0)
		assert.ErrorIs(t, err, ErrMalformed, s)
	}
	id, err = DecodeStrict("0,10", 0)
	require.NoError(t, err)
	assert.Equal(t, "0,10", Encode(id))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(ID{42, 7}))
	assert.NoError(t, Validate(nil))
	assert.ErrorIs(t, Validate(ID{5, -1}), ErrMalformed)
	assert.ErrorIs(t, Validate(ID{-3}), ErrMalformed)
}

func TestFromJSON(t *testing.T) {
	assert.Equal(t, ID{1, 2, 3}, FromJSON([]byte(`[1,2,3]`)))
	assert.Equal(t, ID{1, 3}, FromJSON([]byte(`[1,"two",3,-1,2.5]`)))
	assert.Equal(t, ID{}, FromJSON([]byte(`{"a":1}`)))
	assert.Equal(t, ID{}, FromJSON([]byte(`not json`)))
}

func TestUnique(t *testing.T) {
	got := Unique([]ID{{1, 2}, {1, 2}, {3}, {}, {3}})
	assert.Equal(t, []ID{{1, 2}, {3}}, got)
}

func TestJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		ID   ID `json:"id"`
		None ID `json:"none"`
	}{ID: ID{4, 5}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":[4,5],"none":null}`, string(b))

	var v struct {
		ID ID `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"id":[9,"x",10]}`), &v))
	assert.Equal(t, ID{9, 10}, v.ID)
}

func TestCloneDoesNotAlias(t *testing.T) {
	a := ID{1, 2}
	b := a.Clone()
	b[0] = 99
	assert.Equal(t, 1, a[0])
	assert.Nil(t, ID(nil).Clone())
}
