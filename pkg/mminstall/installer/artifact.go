package installer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jamesainslie/mminstall/pkg/mminstall/errdefs"
	"github.com/jamesainslie/mminstall/pkg/mminstall/ledger"
	"github.com/jamesainslie/mminstall/pkg/mminstall/manifest"
	"github.com/jamesainslie/mminstall/pkg/mminstall/source"
)

// Kind names an artifact category.
type Kind string

const (
	KindLoader   Kind = "loader"
	KindMod      Kind = "mod"
	KindResource Kind = "resource"
)

// artifact is one manifest entry joined with its ledger record.
type artifact struct {
	kind       Kind
	name       string
	src        source.Source
	hash       string
	destDir    string
	decompress bool

	recorded      bool
	recordMatches bool
	recordedFile  string
	recordedHash  string

	// record stores the installed file name and returns the file name of
	// the record it replaced, if any.
	record func(fileName string) (prevFile string, replaced bool)
}

func (r *run) loaderArtifact() *artifact {
	ml := r.manifest.ModLoader
	a := &artifact{
		kind:    KindLoader,
		name:    ml.Name,
		src:     ml.Source(),
		hash:    ml.Hash,
		destDir: r.layout.LoaderDir(),
		record: func(fileName string) (string, bool) {
			prev, replaced := r.ledger.RecordLoader(ledger.LoaderRecord{FileName: fileName, URL: ml.URL, Hash: ml.Hash})
			return prev.FileName, replaced
		},
	}
	if rec, ok := r.ledger.Loader(); ok {
		a.setRecord(rec.FileName, rec.Hash, rec.URL == ml.URL)
	}
	return a
}

func (r *run) modArtifact(e manifest.ModEntry) (*artifact, error) {
	src, err := e.Fields.Source()
	if err != nil {
		return nil, fmt.Errorf("mod %s: %w", e.Name, errors.Join(errdefs.ErrValidation, err))
	}
	a := &artifact{
		kind:    KindMod,
		name:    e.Name,
		src:     src,
		hash:    e.Hash,
		destDir: r.layout.ModsDir(),
		record: func(fileName string) (string, bool) {
			prev, replaced := r.ledger.RecordMod(src, ledger.ModRecord{FileName: fileName, Hash: e.Hash})
			return prev.FileName, replaced
		},
	}
	if rec, ok := r.ledger.Mod(src); ok {
		a.setRecord(rec.FileName, rec.Hash, true)
	}
	return a, nil
}

func (r *run) resourceArtifact(e manifest.ResourceEntry) (*artifact, error) {
	src, err := e.Fields.Source()
	if err != nil {
		return nil, fmt.Errorf("resource %s: %w", e.Name, errors.Join(errdefs.ErrValidation, err))
	}
	a := &artifact{
		kind:       KindResource,
		name:       e.Name,
		src:        src,
		hash:       e.Hash,
		destDir:    r.layout.ResourceDir(e.TargetDir),
		decompress: e.Decompress,
		record: func(fileName string) (string, bool) {
			prev, replaced := r.ledger.RecordResource(src, ledger.ResourceRecord{
				FileName:   fileName,
				Hash:       e.Hash,
				TargetDir:  e.TargetDir,
				Decompress: e.Decompress,
			})
			return prev.FileName, replaced
		},
	}
	if rec, ok := r.ledger.Resource(src, e.TargetDir); ok {
		// Switching between extracting and placing the archive is drift too.
		a.setRecord(rec.FileName, rec.Hash, rec.Decompress == e.Decompress)
	}
	return a, nil
}

// setRecord attaches the ledger's view. A record satisfies the entry when
// its key already matched and the hashes are equal ignoring case.
func (a *artifact) setRecord(fileName, hash string, sameSource bool) {
	a.recorded = true
	a.recordedFile = fileName
	a.recordedHash = hash
	a.recordMatches = sameSource && strings.EqualFold(strings.TrimSpace(hash), strings.TrimSpace(a.hash))
}
