package registry

import (
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaisigil/gate/pkg/payload"
)

// entryFor returns the entry for url in state.Registry, or fails the test.
func entryFor(t *testing.T, state State, url string) Entry {
	t.Helper()
	for _, e := range state.Registry {
		if e.URL == url {
			return e
		}
	}
	t.Fatalf("no entry for %s in registry", url)
	return Entry{}
}

const base = "https://k.example"

func b64url(s string) string {
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(s))
}

func file(name, body string) File {
	return File{Name: name, Bytes: []byte(body)}
}

// TestInhaleBareToken is S1: a bare token decodes to a leaf payload and
// becomes the sole registry entry.
func TestInhaleBareToken(t *testing.T) {
	tok := b64url(`{"pulse":5,"beat":2,"stepIndex":1}`)
	s := New(base)

	report := s.Inhale([]File{file("a", fmt.Sprintf(`{"x":%q}`, tok))})
	assert.Equal(t, 1, report.CrystalsImported)
	assert.Equal(t, 1, report.RegistryURLs)
	require.NotNil(t, report.LatestPulse)
	assert.EqualValues(t, 5, *report.LatestPulse)

	urls := s.ExhaleURLs()
	require.Len(t, urls, 1)
	assert.Equal(t, base+"/stream/p/"+tok, urls[0])

	state := s.GetState()
	assert.Equal(t, int64(5), state.Latest.Pulse)
	assert.Equal(t, int64(2), state.Latest.Beat)
	assert.Equal(t, int64(1), state.Latest.StepIndex)
}

// TestInhaleNewerWins is S3.
func TestInhaleNewerWins(t *testing.T) {
	tok1 := b64url(`{"pulse":1}`)
	tok2 := b64url(`{"pulse":2,"kaiSignature":"sig"}`)
	url := base + "/stream/p/SAMEURLSAMEURLSAME"

	s := New(base)
	s.Inhale([]File{file("a", fmt.Sprintf(`{"x":%q}`, urlWithToken(url, tok1)))})
	report := s.Inhale([]File{file("b", fmt.Sprintf(`{"x":%q}`, urlWithToken(url, tok2)))})

	assert.Equal(t, 1, report.RegistryURLs)
	state := s.GetState()
	e := entryFor(t, state, base+"/stream/p/SAMEURLSAMEURLSAME")
	assert.EqualValues(t, 2, e.Pulse)
	require.NotNil(t, e.KaiSignature)
	assert.Equal(t, "sig", *e.KaiSignature)
}

func urlWithToken(base, tok string) string {
	return base + "?p=" + tok
}

// TestInhaleFillsMissing is S5.
func TestInhaleFillsMissing(t *testing.T) {
	leaf := "LEAFLEAFLEAFLEAF"
	tok1 := b64url(`{"pulse":4,"kaiSignature":"s"}`)
	tok2 := b64url(`{"pulse":4,"chakraDay":"root"}`)

	s := New(base)
	s.Inhale([]File{file("a", fmt.Sprintf(`{"x":"https://k.example/stream/p/%s?p=%s"}`, leaf, tok1))})
	s.Inhale([]File{file("b", fmt.Sprintf(`{"x":"https://k.example/stream/p/%s?p=%s"}`, leaf, tok2))})

	state := s.GetState()
	e := entryFor(t, state, "https://k.example/stream/p/"+leaf)
	require.NotNil(t, e.KaiSignature)
	assert.Equal(t, "s", *e.KaiSignature)
	require.NotNil(t, e.ChakraDay)
	assert.Equal(t, "root", *e.ChakraDay)
}

// TestInhaleWitnessChain is S6.
func TestInhaleWitnessChain(t *testing.T) {
	rootTok := b64url(`{"pulse":1}`)
	midTok := b64url(`{"pulse":2}`)
	leafTok := b64url(`{"pulse":3}`)

	rootURL := base + "/stream/p/ROOTROOTROOTROOT?p=" + rootTok
	midURL := base + "/stream/p/MIDMIDMIDMIDMIDMID?p=" + midTok
	add := rootURL + "," + midURL
	leafURL := fmt.Sprintf(`https://k.example/stream/p/LEAFLEAFLEAFLEAF?p=%s&add=%s`, leafTok, add)

	s := New(base)
	report := s.Inhale([]File{file("a", fmt.Sprintf(`{"x":%q}`, leafURL))})
	assert.Equal(t, 3, report.RegistryURLs)

	state := s.GetState()
	leafEntry := entryFor(t, state, leafURL)

	rootCanon := base + "/stream/p/ROOTROOTROOTROOT?p=" + rootTok
	midCanon := base + "/stream/p/MIDMIDMIDMIDMIDMID?p=" + midTok
	require.NotNil(t, leafEntry.OriginURL)
	assert.Equal(t, rootCanon, *leafEntry.OriginURL)
	require.NotNil(t, leafEntry.ParentURL)
	assert.Equal(t, midCanon, *leafEntry.ParentURL)

	midEntry := entryFor(t, state, midCanon)
	require.NotNil(t, midEntry.ParentURL)
	assert.Equal(t, rootCanon, *midEntry.ParentURL)
}

func TestInhaleBadJSONFileIsSkippedNotFatal(t *testing.T) {
	s := New(base)
	report := s.Inhale([]File{file("bad", `{not json`)})
	assert.Equal(t, 1, report.CrystalsFailed)
	assert.Len(t, report.Errors, 1)
	assert.Equal(t, 0, report.RegistryURLs)
}

func TestInhaleBatchIdempotence(t *testing.T) {
	tok := b64url(`{"pulse":1}`)
	files := []File{file("a", fmt.Sprintf(`{"x":%q}`, tok))}

	s := New(base)
	s.Inhale(files)
	seal1 := s.GetSeal()
	urls1 := s.ExhaleURLs()

	s.Inhale(files)
	seal2 := s.GetSeal()
	urls2 := s.ExhaleURLs()

	assert.Equal(t, seal1, seal2)
	assert.Equal(t, urls1, urls2)
}

func TestExhaleURLsPageClampsAndTotals(t *testing.T) {
	s := New(base)
	var files []File
	for i := 0; i < 5; i++ {
		tok := b64url(fmt.Sprintf(`{"pulse":%d}`, i))
		files = append(files, file(fmt.Sprintf("f%d", i), fmt.Sprintf(`{"x":%q}`, tok)))
	}
	s.Inhale(files)

	page, total := s.ExhaleURLsPage(-5, 0)
	assert.Equal(t, 5, total)
	assert.Len(t, page, 1) // limit clamped to >=1

	page, total = s.ExhaleURLsPage(100, 10)
	assert.Equal(t, 5, total)
	assert.Empty(t, page)
}

func TestGetSealChangesOnlyWhenRegistryChanges(t *testing.T) {
	s := New(base)
	sealEmpty := s.GetSeal()

	tok := b64url(`{"pulse":1}`)
	s.Inhale([]File{file("a", fmt.Sprintf(`{"x":%q}`, tok))})
	sealAfter := s.GetSeal()

	assert.NotEqual(t, sealEmpty, sealAfter)

	// Re-inhaling the same content must not change the seal.
	s.Inhale([]File{file("a", fmt.Sprintf(`{"x":%q}`, tok))})
	assert.Equal(t, sealAfter, s.GetSeal())
}

func TestOrderedURLsDescendingByLogicalTimeThenURLAscending(t *testing.T) {
	reg := map[string]payload.Payload{
		"https://k.example/b": {"pulse": float64(1)},
		"https://k.example/a": {"pulse": float64(1)},
		"https://k.example/c": {"pulse": float64(2)},
	}
	got := orderedURLs(reg)
	assert.Equal(t, []string{
		"https://k.example/c",
		"https://k.example/a",
		"https://k.example/b",
	}, got)
}
