package graphstore

import (
	"database/sql"

	"github.com/basinlabs/symgraph/internal/bm25"
	"github.com/basinlabs/symgraph/internal/sgerrors"
)

// defaultBoostName is the boost_config row the indexer reads.
const defaultBoostName = "default"

// BoostConfig loads the persisted symbol-aware boost weights, seeding
// the default row on first access.
func (s *Store) BoostConfig() (bm25.BoostConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cfg bm25.BoostConfig
	err := s.db.QueryRow(`
		SELECT file_name_match_boost, exported_symbol_boost, defined_symbol_boost,
		       all_symbol_boost, import_only_penalty, content_match_weight
		FROM boost_config WHERE name = ?`, defaultBoostName).
		Scan(&cfg.FileNameMatchBoost, &cfg.ExportedSymbolBoost, &cfg.DefinedSymbolBoost,
			&cfg.AllSymbolBoost, &cfg.ImportOnlyPenalty, &cfg.ContentMatchWeight)
	if err == sql.ErrNoRows {
		cfg = bm25.DefaultBoostConfig()
		if err := s.setBoostConfigLocked(cfg); err != nil {
			return bm25.BoostConfig{}, err
		}
		return cfg, nil
	}
	if err != nil {
		return bm25.BoostConfig{}, sgerrors.StoreErr("load boost config", err)
	}
	return cfg, nil
}

// SetBoostConfig persists updated boost weights; they take effect on the
// next symbol-aware search.
func (s *Store) SetBoostConfig(cfg bm25.BoostConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setBoostConfigLocked(cfg)
}

func (s *Store) setBoostConfigLocked(cfg bm25.BoostConfig) error {
	_, err := s.db.Exec(`
		INSERT INTO boost_config (name, file_name_match_boost, exported_symbol_boost,
			defined_symbol_boost, all_symbol_boost, import_only_penalty, content_match_weight)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			file_name_match_boost = excluded.file_name_match_boost,
			exported_symbol_boost = excluded.exported_symbol_boost,
			defined_symbol_boost = excluded.defined_symbol_boost,
			all_symbol_boost = excluded.all_symbol_boost,
			import_only_penalty = excluded.import_only_penalty,
			content_match_weight = excluded.content_match_weight`,
		defaultBoostName, cfg.FileNameMatchBoost, cfg.ExportedSymbolBoost,
		cfg.DefinedSymbolBoost, cfg.AllSymbolBoost, cfg.ImportOnlyPenalty, cfg.ContentMatchWeight)
	if err != nil {
		return sgerrors.StoreErr("save boost config", err)
	}
	return nil
}
