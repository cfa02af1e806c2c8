// Package shell implements the user-facing flows built on top of player data: unlocking
// games, saving settings, confirmed resets, and backup export/import.
package shell

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/playmate/internal/notify"
	"github.com/TimurManjosov/playmate/internal/playerdata"
)

// User-visible messages.
const (
	MsgUnlocked          = "Game unlocked successfully!"
	MsgSettingsSaved     = "Settings saved successfully!"
	MsgProgressReset     = "All progress has been reset!"
	MsgPurchasesReset    = "All purchases have been reset!"
	MsgDataReset         = "All data has been reset!"
	MsgExported          = "Data exported successfully!"
	MsgExportFailed      = "Failed to export data"
	MsgImported          = "Data imported successfully!"
	MsgInvalidBackup     = "Invalid backup file"
	MsgImportFailed      = "Failed to import data"
	PromptResetProgress  = "Are you sure you want to reset all game progress? This cannot be undone."
	PromptResetPurchases = "Are you sure you want to reset all purchases? This will lock all purchased games."
	PromptResetData      = "Are you sure you want to reset ALL data? This will delete everything and cannot be undone."
)

// Notifier shows a toast.
type Notifier interface {
	Notify(level notify.Level, message string)
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// CardRefresher redraws the card of one game.
type CardRefresher interface {
	RefreshCard(gameID string)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// Answer returns a Confirmer that always answers yes.
func Answer(yes bool) Confirmer {
	return ConfirmFunc(func(context.Context, string) bool { return yes })
}

// Actions wires player data to the user's collaborators.
type Actions struct {
	data     *playerdata.Manager
	notifier Notifier
	cards    CardRefresher
	log      zerolog.Logger
}

// NewActions creates the shell actions.
func NewActions(data *playerdata.Manager, notifier Notifier, cards CardRefresher, log zerolog.Logger) *Actions {
	return &Actions{
		data:     data,
		notifier: notifier,
		cards:    cards,
		log:      log.With().Str("component", "shell").Logger(),
	}
}

// Unlock simulates buying gameID. It returns false without side effects when the game
// is already unlocked.
func (a *Actions) Unlock(ctx context.Context, gameID string, price float64) (bool, error) {
	if a.data.IsGameUnlocked(ctx, gameID) {
		return false, nil
	}
	if err := a.data.UnlockGame(ctx, gameID); err != nil {
		return false, err
	}
	if err := a.data.AddPurchase(ctx, gameID, price); err != nil {
		// the game stays unlocked; only the receipt is missing
		a.log.Error().Err(err).Str("game_id", gameID).Msg("purchase not recorded")
	}
	a.notifier.Notify(notify.LevelSuccess, MsgUnlocked)
	a.cards.RefreshCard(gameID)
	a.log.Info().Str("game_id", gameID).Float64("price", price).Msg("game unlocked")
	return true, nil
}

// SaveSettings persists s and confirms it to the user.
func (a *Actions) SaveSettings(ctx context.Context, s playerdata.Settings) error {
	if err := a.data.SetSettings(ctx, s); err != nil {
		return err
	}
	a.notifier.Notify(notify.LevelSuccess, MsgSettingsSaved)
	return nil
}

// StartGame records that gameID was started.
func (a *Actions) StartGame(ctx context.Context, gameID string) {
	a.data.TrackGameStart(ctx, gameID)
}

// CompleteGame saves a finished run and reports whether it set a new high score.
func (a *Actions) CompleteGame(ctx context.Context, gameID string, score, level int) (playerdata.Progress, bool, error) {
	p := a.data.GameProgress(ctx, gameID)
	p.Score = score
	p.Level = max(level, 1)
	newHigh := score > p.HighScore
	if newHigh {
		p.HighScore = score
	}
	a.data.TrackGameComplete(ctx, gameID, score, level)
	if err := a.data.SetGameProgress(ctx, gameID, p); err != nil {
		return p, newHigh, err
	}
	return p, newHigh, nil
}

// ResetAllProgress clears every game's progress once confirmed.
func (a *Actions) ResetAllProgress(ctx context.Context, c Confirmer) (bool, error) {
	if !c.Confirm(ctx, PromptResetProgress) {
		return false, nil
	}
	if _, err := a.data.ResetAllProgress(ctx); err != nil {
		return false, err
	}
	a.notifier.Notify(notify.LevelSuccess, MsgProgressReset)
	return true, nil
}

// ResetAllPurchases clears purchases and unlocks once confirmed.
func (a *Actions) ResetAllPurchases(ctx context.Context, c Confirmer) (bool, error) {
	if !c.Confirm(ctx, PromptResetPurchases) {
		return false, nil
	}
	if _, err := a.data.ResetAllPurchases(ctx); err != nil {
		return false, err
	}
	a.notifier.Notify(notify.LevelSuccess, MsgPurchasesReset)
	return true, nil
}

// ResetAllData wipes all player data once confirmed.
func (a *Actions) ResetAllData(ctx context.Context, c Confirmer) (bool, error) {
	if !c.Confirm(ctx, PromptResetData) {
		return false, nil
	}
	if err := a.data.ResetAllData(ctx); err != nil {
		return false, err
	}
	a.notifier.Notify(notify.LevelSuccess, MsgDataReset)
	return true, nil
}

// Export produces a backup bundle and reports the outcome.
func (a *Actions) Export(ctx context.Context) (playerdata.Bundle, error) {
	b, err := a.data.Export(ctx)
	a.ReportExport(err)
	return b, err
}

// ReportExport tells the player whether a backup was delivered. Callers that may answer
// without delivering one, such as a cache revalidation, report only actual downloads.
func (a *Actions) ReportExport(err error) {
	if err != nil {
		a.notifier.Notify(notify.LevelError, MsgExportFailed)
		return
	}
	a.notifier.Notify(notify.LevelSuccess, MsgExported)
}

// Import restores a backup bundle.
func (a *Actions) Import(ctx context.Context, raw []byte) (playerdata.ImportResult, error) {
	res, err := a.data.Import(ctx, raw)
	switch {
	case errors.Is(err, playerdata.ErrInvalidBundle):
		a.notifier.Notify(notify.LevelError, MsgInvalidBackup)
		return res, err
	case err != nil:
		a.notifier.Notify(notify.LevelError, MsgImportFailed)
		return res, err
	}
	a.notifier.Notify(notify.LevelSuccess, MsgImported)
	return res, nil
}
