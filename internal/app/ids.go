package app

import (
    "crypto/rand"
    "fmt"
)

const (
    codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
    codeLength   = 6
)

// newRoomCode returns codeLength random characters of codeAlphabet.
func newRoomCode() (string, error) {
    var b [codeLength]byte
    if _, err := rand.Read(b[:]); err != nil {
        return "", fmt.Errorf("room code: %w", err)
    }
    // 256 % 36 != 0: the first four symbols are slightly more likely.
    for i := range b {
        b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
    }
    return string(b[:]), nil
}
