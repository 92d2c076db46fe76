package repomd

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// Recognized checksum algorithm names. spec.md §4.4/§9 requires these be
// matched case-insensitively; [ParseAlgorithm] lowercases before matching
// and rejects anything else.
const (
	SHA256 = "sha256"
	SHA1   = "sha1"
	MD5    = "md5"
)

// DefaultAlgorithm is the checksum algorithm used when none is configured
// (spec.md §2: "default sha256").
const DefaultAlgorithm = SHA256

// Digest is a type representing the hash of some data: an algorithm name
// plus checksum bytes, with a cached string representation.
//
// Directly grounded on claircore's Digest type, extended to the three
// algorithms repo metadata tooling actually uses (md5/sha1/sha256) rather
// than claircore's own sha256/sha512 pair.
type Digest struct {
	algo     string
	checksum []byte
	repr     string
}

// Checksum returns the checksum byte slice.
func (d Digest) Checksum() []byte { return d.checksum }

// Algorithm returns the name of the algorithm used for this digest.
func (d Digest) Algorithm() string { return d.algo }

// Hash returns a fresh instance of the hashing algorithm used for this
// Digest.
func (d Digest) Hash() hash.Hash {
	h, err := newHash(d.algo)
	if err != nil {
		panic(err)
	}
	return h
}

// NewHash returns a fresh hash.Hash for algo, for callers that need to
// stream bytes through a digest incrementally rather than hash a whole
// file or byte slice at once (e.g. the driver's open-checksum computation
// alongside the compressor it's writing through).
func NewHash(algo string) (hash.Hash, error) {
	return newHash(algo)
}

func newHash(algo string) (hash.Hash, error) {
	switch algo {
	case SHA256:
		return sha256.New(), nil
	case SHA1:
		return sha1.New(), nil
	case MD5:
		return md5.New(), nil
	default:
		return nil, fmt.Errorf("repomd: unknown checksum algorithm %q", algo)
	}
}

func hashSize(algo string) (int, error) {
	switch algo {
	case SHA256:
		return sha256.Size, nil
	case SHA1:
		return sha1.Size, nil
	case MD5:
		return md5.Size, nil
	default:
		return 0, fmt.Errorf("repomd: unknown checksum algorithm %q", algo)
	}
}

// String implements [fmt.Stringer], rendering "algo:hexdigest".
func (d Digest) String() string { return d.repr }

// MarshalText implements [encoding.TextMarshaler].
func (d Digest) MarshalText() ([]byte, error) {
	b := make([]byte, len(d.repr))
	copy(b, d.repr)
	return b, nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Digest) UnmarshalText(t []byte) error {
	i := bytes.IndexByte(t, ':')
	if i == -1 {
		return &DigestError{msg: "invalid digest format"}
	}
	d.algo = string(t[:i])
	t = t[i+1:]
	b := make([]byte, hex.DecodedLen(len(t)))
	if _, err := hex.Decode(b, t); err != nil {
		return &DigestError{msg: "unable to decode digest as hex", inner: err}
	}
	return d.setChecksum(b)
}

// DigestError is the concrete type backing errors returned from Digest's
// methods.
type DigestError struct {
	msg   string
	inner error
}

// Error implements error.
func (e *DigestError) Error() string { return e.msg }

// Unwrap enables [errors.Unwrap].
func (e *DigestError) Unwrap() error { return e.inner }

func (d *Digest) setChecksum(b []byte) error {
	sz, err := hashSize(d.algo)
	if err != nil {
		return &DigestError{msg: err.Error()}
	}
	if l := len(b); l != sz {
		return &DigestError{msg: fmt.Sprintf("bad checksum length: %d", l)}
	}

	el := hex.EncodedLen(sz)
	hl := len(d.algo) + 1
	sb := make([]byte, hl+el)
	copy(sb, d.algo)
	sb[len(d.algo)] = ':'
	hex.Encode(sb[hl:], b)

	d.checksum = b
	d.repr = string(sb)
	return nil
}

// NewDigest constructs a Digest from an already-computed checksum.
func NewDigest(algo string, sum []byte) (Digest, error) {
	d := Digest{algo: algo}
	return d, d.setChecksum(sum)
}

// ParseDigest constructs a Digest from an "algo:hexdigest" string,
// ensuring it's well-formed.
func ParseDigest(digest string) (Digest, error) {
	d := Digest{}
	return d, d.UnmarshalText([]byte(digest))
}

// ParseAlgorithm validates and case-folds a `--checksum` flag value
// against the recognized algorithm names (spec.md §9's "checksum_type
// case-folding" open question: lowercase before matching, reject anything
// unrecognized).
func ParseAlgorithm(s string) (string, error) {
	lower := toLower(s)
	switch lower {
	case SHA256, SHA1, MD5:
		return lower, nil
	default:
		return "", &Error{Op: "ParseAlgorithm", Kind: BadArg, Message: fmt.Sprintf("unrecognized checksum type %q", s)}
	}
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// DigestFile streams path through algo's hash function and returns the
// resulting Digest (spec.md §4.4: "compute the digest by streaming the
// file").
func DigestFile(algo, path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, &Error{Op: "DigestFile", Kind: IO, Inner: err}
	}
	defer f.Close()
	return DigestReader(algo, f)
}

// DigestReader streams r through algo's hash function and returns the
// resulting Digest.
func DigestReader(algo string, r io.Reader) (Digest, error) {
	h, err := newHash(algo)
	if err != nil {
		return Digest{}, &Error{Op: "DigestReader", Kind: BadArg, Inner: err}
	}
	if _, err := io.Copy(h, r); err != nil {
		return Digest{}, &Error{Op: "DigestReader", Kind: IO, Inner: err}
	}
	return NewDigest(algo, h.Sum(nil))
}

// DigestBytes hashes b in memory using algo.
func DigestBytes(algo string, b []byte) (Digest, error) {
	h, err := newHash(algo)
	if err != nil {
		return Digest{}, &Error{Op: "DigestBytes", Kind: BadArg, Inner: err}
	}
	h.Write(b)
	return NewDigest(algo, h.Sum(nil))
}
