package persistence

import "errors"

// Standard persistence error types shared by all implementations.
var (
	// ErrContactNotFound indicates no contact exists for the identifier.
	ErrContactNotFound = errors.New("contact not found")

	// ErrSettingsNotFound indicates a merchant has no stored settings.
	ErrSettingsNotFound = errors.New("merchant settings not found")

	// ErrBotNotFound indicates no bot credentials exist for the bot id.
	ErrBotNotFound = errors.New("bot not found")

	// ErrIngestionNotFound indicates an unknown ingestion record id.
	ErrIngestionNotFound = errors.New("ingestion record not found")
)

func IsContactNotFound(err error) bool {
	return errors.Is(err, ErrContactNotFound)
}

func IsSettingsNotFound(err error) bool {
	return errors.Is(err, ErrSettingsNotFound)
}

func IsBotNotFound(err error) bool {
	return errors.Is(err, ErrBotNotFound)
}
