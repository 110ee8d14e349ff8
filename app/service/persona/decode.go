package persona

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeConfig replaces a persona wholesale from JSON. Omitted fields take their defaults.
func DecodeConfig(data []byte) (Config, error) {
	result := Config{
		Tone:             "neutral",
		Formality:        "casual",
		EmojiOK:          true,
		Talkativeness:    DefaultTalkativeness(),
		Safety:           Safety{PGRating: "PG"},
		StructuredOutput: true,
	}

	if err := decodePayload(data, &result); err != nil {
		return Config{}, fmt.Errorf("invalid persona: %w", err)
	}

	if err := validate.Struct(result); err != nil {
		return Config{}, fmt.Errorf("invalid persona: %w", err)
	}

	return result, nil
}

// DecodeParams replaces sampling parameters wholesale from JSON. Omitted fields take their defaults.
func DecodeParams(data []byte) (Params, error) {
	result := DefaultParams()

	if err := decodePayload(data, &result); err != nil {
		return Params{}, fmt.Errorf("invalid params: %w", err)
	}

	if err := validate.Struct(result); err != nil {
		return Params{}, fmt.Errorf("invalid params: %w", err)
	}

	return result, nil
}

func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read persona file: %w", err)
	}

	return DecodeConfig(data)
}

func decodePayload(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return fmt.Errorf("payload is empty")
	}

	return json.Unmarshal(data, v)
}
