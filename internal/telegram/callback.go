package telegram

import (
	"errors"
	"fmt"
	"strings"

	"github.com/SilentStoat/StoatBot/internal/wizard"
)

// MaxCallbackData is Telegram's limit on inline button payloads, in bytes.
const MaxCallbackData = 64

// ErrCallbackTooLong is returned when a list id and value do not fit a button.
var ErrCallbackTooLong = errors.New("callback data exceeds 64 bytes")

// EncodeCallback packs a list id and an option value as "step:index|value".
func EncodeCallback(id wizard.ListID, value string) (string, error) {
	data := id.String() + "|" + value
	if len(data) > MaxCallbackData {
		return "", fmt.Errorf("%w: %q", ErrCallbackTooLong, data)
	}
	return data, nil
}

// DecodeCallback reverses EncodeCallback.
func DecodeCallback(data string) (wizard.ListID, string, error) {
	head, value, ok := strings.Cut(data, "|")
	if !ok {
		return wizard.ListID{}, "", fmt.Errorf("%w: callback %q", wizard.ErrMalformedSelection, data)
	}
	id, err := wizard.ParseListID(head)
	if err != nil {
		return wizard.ListID{}, "", err
	}
	return id, value, nil
}
