package id

import (
	"bytes"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	assert.NotEqual(t, gen.Generate().String(), gen.Generate().String())
	assert.Len(t, gen.GenerateString(), 26)
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{FilePrefix, SessionPrefix, ProjectPrefix, SecretPrefix, FramePrefix} {
		t.Run(prefix, func(t *testing.T) {
			got := gen.GenerateWithPrefix(prefix)
			require.True(t, strings.HasPrefix(got, prefix+"_"), got)
			assert.True(t, HasPrefix(got, prefix))
			assert.False(t, HasPrefix(got, "other"))
		})
	}
}

func TestTypedIDs(t *testing.T) {
	assert.True(t, HasPrefix(NewFileID().String(), FilePrefix))
	assert.True(t, HasPrefix(NewSessionID().String(), SessionPrefix))
	assert.True(t, HasPrefix(NewProjectID().String(), ProjectPrefix))
	assert.True(t, HasPrefix(NewSecretID().String(), SecretPrefix))
	assert.True(t, HasPrefix(NewFrameID().String(), FramePrefix))
}

func TestMonotonicOrdering(t *testing.T) {
	gen := NewGeneratorWithEntropy(bytes.NewReader(bytes.Repeat([]byte{7}, 4096)))

	ids := make([]string, 50)
	for i := range ids {
		ids[i] = gen.GenerateString()
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := Timestamp(NewFileID().String())
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	_, err = Timestamp("file_nope")
	assert.Error(t, err)
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := gen.GenerateString()
				mu.Lock()
				seen[s] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 800)
}
