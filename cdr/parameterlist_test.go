package cdr_test

import (
	"testing"

	"github.com/joeycumines/go-rtps/cdr"
	"github.com/stretchr/testify/require"
)

func TestParameterListRoundTrip(t *testing.T) {
	pl := cdr.ParameterList{
		cdr.PutString(cdr.PIDTopicName, "Square"),
		cdr.PutUint32(cdr.PIDDomainID, 7),
		{ID: cdr.PIDKeyHash, Value: []byte{1, 2, 3}},
	}
	buf := pl.Encode(nil)

	got, rest, err := cdr.Decode(buf)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.Len(t, got, 3)

	name, err := cdr.GetString(got[0])
	require.NoError(t, err)
	require.Equal(t, "Square", name)

	domain, err := cdr.GetUint32(got[1])
	require.NoError(t, err)
	require.Equal(t, uint32(7), domain)

	kh, ok := got.Get(cdr.PIDKeyHash)
	require.True(t, ok)
	// padded to 4 bytes
	require.Equal(t, []byte{1, 2, 3, 0}, kh.Value)
}

func TestParameterListGetMissing(t *testing.T) {
	pl := cdr.ParameterList{cdr.PutUint32(cdr.PIDDomainID, 1)}
	_, ok := pl.Get(cdr.PIDTopicName)
	require.False(t, ok)
}

func TestDecodeTruncated(t *testing.T) {
	_, _, err := cdr.Decode([]byte{0x01, 0x00})
	require.Error(t, err)
}

func TestDecodeTrailingBytesAfterSentinel(t *testing.T) {
	pl := cdr.ParameterList{cdr.PutUint32(cdr.PIDDomainID, 3)}
	buf := pl.Encode(nil)
	buf = append(buf, 0xde, 0xad, 0xbe, 0xef)

	got, rest, err := cdr.Decode(buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, rest)
}
