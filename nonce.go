package ws

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"hash"
	"sync"
)

const (
	// RFC6455: The value of this header field MUST be a nonce consisting of a
	// randomly selected 16-byte value that has been base64-encoded (see
	// Section 4 of [RFC4648]).  The nonce MUST be selected randomly for each
	// connection.
	nonceKeySize = 16
	nonceSize    = 24 // base64.StdEncoding.EncodedLen(nonceKeySize)

	// RFC6455: The value of this header field is constructed by concatenating
	// /key/, defined above in step 4 in Section 4.2.2, with the string
	// "258EAFA5- E914-47DA-95CA-C5AB0DC85B11", taking the SHA-1 hash of this
	// concatenated value to obtain a 20-byte value and base64- encoding (see
	// Section 4 of [RFC4648]) this 20-byte hash.
	acceptSize = 28 // base64.StdEncoding.EncodedLen(sha1.Size)
)

var webSocketMagic = []byte("258EAFA5-E914-47DA-95CA-C5AB0DC85B11")

var sha1Pool sync.Pool

func acquireSha1() hash.Hash {
	if h := sha1Pool.Get(); h != nil {
		return h.(hash.Hash)
	}
	return sha1.New()
}

func releaseSha1(h hash.Hash) {
	h.Reset()
	sha1Pool.Put(h)
}

// newNonce returns random base64-encoded nonce.
func newNonce() string {
	var key [nonceKeySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		panic("ws: rand read error: " + err.Error())
	}
	return base64.StdEncoding.EncodeToString(key[:])
}

// Accept returns the Sec-WebSocket-Accept value for given Sec-WebSocket-Key.
func Accept(key string) string {
	var dst [acceptSize]byte
	putAccept(dst[:], []byte(key))
	return string(dst[:])
}

// putAccept fills dst with accept bytes generated from given nonce bytes.
// Given buffer should be exactly acceptSize bytes.
func putAccept(dst, nonce []byte) {
	if len(dst) != acceptSize {
		panic("accept buffer is invalid")
	}

	sha := acquireSha1()
	defer releaseSha1(sha)

	sha.Write(nonce)
	sha.Write(webSocketMagic)

	var sb [sha1.Size]byte
	base64.StdEncoding.Encode(dst, sha.Sum(sb[:0]))
}

// checkAccept reports whether given accept bytes are valid for given nonce.
func checkAccept(accept []byte, nonce string) bool {
	if len(accept) != acceptSize {
		return false
	}
	var expect [acceptSize]byte
	putAccept(expect[:], []byte(nonce))
	return string(expect[:]) == string(accept)
}
