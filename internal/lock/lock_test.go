package lock

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProperties struct {
	values    map[string]string
	getErr    error
	setErr    error
	deleteErr error

	// onSet lets a test interleave a competing writer.
	onSet func()
}

func newFakeProperties() *fakeProperties {
	return &fakeProperties{values: make(map[string]string)}
}

func (f *fakeProperties) Get(prID int, key string) (string, bool, error) {
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeProperties) Set(prID int, key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = value
	if f.onSet != nil {
		onSet := f.onSet
		f.onSet = nil
		onSet()
	}
	return nil
}

func (f *fakeProperties) Delete(prID int, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.values, key)
	return nil
}

func lockRecord(t *testing.T, owner string, acquiredAt time.Time) string {
	t.Helper()
	raw, err := json.Marshal(record{Owner: owner, AcquiredAt: acquiredAt})
	require.NoError(t, err)
	return string(raw)
}

func storedOwner(t *testing.T, props *fakeProperties) string {
	t.Helper()
	raw, ok := props.values[PropertyKey]
	require.True(t, ok)
	var rec record
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	return rec.Owner
}

func TestAcquireAndRelease(t *testing.T) {
	props := newFakeProperties()
	l := New(props, 7, "build-42", hclog.NewNullLogger())

	acq, err := l.Acquire()
	require.NoError(t, err)
	assert.True(t, acq.Acquired)
	assert.Equal(t, "build-42", storedOwner(t, props))

	l.Release()
	assert.NotContains(t, props.values, PropertyKey)
}

func TestAcquireHeldByAnotherRun(t *testing.T) {
	props := newFakeProperties()
	props.values[PropertyKey] = lockRecord(t, "build-41", time.Now())
	l := New(props, 7, "build-42", hclog.NewNullLogger())

	acq, err := l.Acquire()
	require.NoError(t, err)
	assert.False(t, acq.Acquired)
	assert.Equal(t, "build-41", acq.OwnerID)

	// The foreign lock must survive the attempt.
	assert.Equal(t, "build-41", storedOwner(t, props))
}

func TestAcquireReentersOwnStaleLock(t *testing.T) {
	props := newFakeProperties()
	props.values[PropertyKey] = lockRecord(t, "build-42", time.Now().Add(-time.Hour))
	l := New(props, 7, "build-42", hclog.NewNullLogger())

	acq, err := l.Acquire()
	require.NoError(t, err)
	assert.True(t, acq.Acquired)
}

func TestAcquireClaimsExpiredForeignLock(t *testing.T) {
	props := newFakeProperties()
	props.values[PropertyKey] = lockRecord(t, "build-41", time.Now().Add(-2*DefaultTTL))
	l := New(props, 7, "build-42", hclog.NewNullLogger())

	acq, err := l.Acquire()
	require.NoError(t, err)
	assert.True(t, acq.Acquired)
	assert.Equal(t, "build-42", storedOwner(t, props))
}

func TestAcquireClaimsMalformedLock(t *testing.T) {
	props := newFakeProperties()
	props.values[PropertyKey] = "not a lock record"
	l := New(props, 7, "build-42", hclog.NewNullLogger())

	acq, err := l.Acquire()
	require.NoError(t, err)
	assert.True(t, acq.Acquired)
}

func TestAcquireLosesRace(t *testing.T) {
	props := newFakeProperties()
	l := New(props, 7, "build-42", hclog.NewNullLogger())
	props.onSet = func() {
		// A competing run overwrites the property between write and read-back.
		props.values[PropertyKey] = lockRecord(t, "build-99", time.Now())
	}

	acq, err := l.Acquire()
	require.NoError(t, err)
	assert.False(t, acq.Acquired)
	assert.Equal(t, "build-99", acq.OwnerID)
}

func TestAcquireErrorsSurface(t *testing.T) {
	props := newFakeProperties()
	props.getErr = errors.New("503 unavailable")
	l := New(props, 7, "build-42", hclog.NewNullLogger())

	_, err := l.Acquire()
	assert.Error(t, err)

	props = newFakeProperties()
	props.setErr = errors.New("403 forbidden")
	l = New(props, 7, "build-42", hclog.NewNullLogger())

	_, err = l.Acquire()
	assert.Error(t, err)
}

func TestReleaseWithoutHoldIsNoop(t *testing.T) {
	props := newFakeProperties()
	props.values[PropertyKey] = lockRecord(t, "build-41", time.Now())
	l := New(props, 7, "build-42", hclog.NewNullLogger())

	l.Release()
	assert.Equal(t, "build-41", storedOwner(t, props))
}

func TestReleaseFailureKeepsHold(t *testing.T) {
	props := newFakeProperties()
	l := New(props, 7, "build-42", hclog.NewNullLogger())

	acq, err := l.Acquire()
	require.NoError(t, err)
	require.True(t, acq.Acquired)

	props.deleteErr = errors.New("409 conflict")
	l.Release()
	assert.Equal(t, "build-42", storedOwner(t, props))

	props.deleteErr = nil
	l.Release()
	assert.NotContains(t, props.values, PropertyKey)
}
