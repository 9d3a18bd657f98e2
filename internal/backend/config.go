package backend

import (
	"fmt"

	"expenseledger/internal/config"
)

// FromAppConfig converts the application config to mirror config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	mirrorType := MirrorType(appConfig.MirrorBackend)
	if !mirrorType.IsValid() {
		return Config{}, fmt.Errorf("invalid mirror backend in config: %s", appConfig.MirrorBackend)
	}

	return Config{
		Type:                     mirrorType,
		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
	}, nil
}

// Validate validates the mirror configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid mirror type: %s", c.Type)
	}

	if c.Type == SheetsMirror && c.GoogleSpreadsheetID == "" {
		return fmt.Errorf("Google Spreadsheet ID is required for sheets mirror")
	}

	return nil
}

// MirrorTypeStrings returns all valid mirror type strings
func MirrorTypeStrings() []string {
	return []string{MemoryMirror.String(), SheetsMirror.String()}
}
