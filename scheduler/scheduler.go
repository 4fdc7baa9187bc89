// Package scheduler provides automated knowledge base reloads and health
// monitoring for the safemed API. It handles cron-based reloads from disk,
// health checks, and coordinates refresh operations with the data container
// using dependency injection.
package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/safemed/safemed-api/interfaces"
	"github.com/safemed/safemed-api/logging"
	"github.com/safemed/safemed-api/metrics"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// DefaultReloadSchedule reloads twice a day, matching the cadence the health
// checker reports as next_update.
const DefaultReloadSchedule = "06:00;18:00"

// Scheduler handles knowledge base reloads and health monitoring using
// dependency injection
type Scheduler struct {
	dataStore interfaces.DataStore
	loader    interfaces.KnowledgeLoader
	validator interfaces.DataValidator
	scheduler *gocron.Scheduler
	schedule  string
	done      chan struct{}
}

// NewScheduler creates a new scheduler instance with injected dependencies,
// reloading on the default schedule
func NewScheduler(dataStore interfaces.DataStore, loader interfaces.KnowledgeLoader, validator interfaces.DataValidator) *Scheduler {
	return NewSchedulerWithSchedule(dataStore, loader, validator, DefaultReloadSchedule)
}

// NewSchedulerWithSchedule creates a scheduler reloading at custom daily
// times, given as "HH:MM" values separated by semicolons
func NewSchedulerWithSchedule(dataStore interfaces.DataStore, loader interfaces.KnowledgeLoader, validator interfaces.DataValidator, schedule string) *Scheduler {
	return &Scheduler{
		dataStore: dataStore,
		loader:    loader,
		validator: validator,
		scheduler: gocron.NewScheduler(time.Local),
		schedule:  schedule,
		done:      make(chan struct{}),
	}
}

// Start performs the initial knowledge base load and schedules reloads. The
// initial load failing is fatal: an empty knowledge base must never serve
// assessments.
func (s *Scheduler) Start() error {
	if err := s.reloadKnowledgeBase(); err != nil {
		logging.Error("Failed to perform initial knowledge base load", "error", err)
		return fmt.Errorf("initial knowledge base load failed: %w", err)
	}

	// Schedule reloads at the configured daily times
	_, err := s.scheduler.Every(1).Days().At(s.schedule).Do(func() {
		if err := s.reloadKnowledgeBase(); err != nil {
			logging.Error("Failed to reload knowledge base", "error", err)
		}
	})

	if err != nil {
		logging.Error("Failed to schedule reloads", "error", err)
		return fmt.Errorf("failed to schedule reloads: %w", err)
	}

	s.scheduler.StartAsync()

	// Start health monitoring
	s.startHealthMonitoring()

	return nil
}

// Stop stops the scheduler and the health monitor
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	close(s.done)
}

// reloadKnowledgeBase loads the knowledge base from disk and swaps it in
// atomically. A failed load or a failed integrity check leaves the previous
// snapshot serving.
func (s *Scheduler) reloadKnowledgeBase() error {
	// Prevent concurrent reloads
	if !s.dataStore.BeginUpdate() {
		logging.Info("Reload already in progress, skipping...")
		return nil
	}
	defer s.dataStore.EndUpdate()

	logging.Info(fmt.Sprintf("Starting knowledge base reload at: %s", time.Now().Format(time.RFC3339)))
	start := time.Now()

	drugs, drugsMap, aliasIndex, err := s.loader.LoadKnowledgeBase()
	if err != nil {
		logging.Error("Failed to load knowledge base", "error", err)
		return fmt.Errorf("failed to load knowledge base: %w", err)
	}

	if err := s.validator.ValidateDataIntegrity(drugs); err != nil {
		logging.Error("Knowledge base failed integrity validation", "error", err)
		return fmt.Errorf("knowledge base failed integrity validation: %w", err)
	}

	report := s.validator.ReportDataQuality(drugs, aliasIndex)

	// Log duplicate canonical names
	if len(report.DuplicateDrugNames) > 0 {
		logging.Warn("Duplicate drug names detected",
			"total", len(report.DuplicateDrugNames),
			"drugs", report.DuplicateDrugNames,
		)
	}

	// Log aliases that collide or shadow canonical names
	if len(report.DuplicateAliases) > 0 {
		logging.Warn("Conflicting aliases detected",
			"total", len(report.DuplicateAliases),
			"aliases", report.DuplicateAliases,
		)
	}

	// Log drugs without side effects
	if len(report.DrugsWithoutSideEffects) > 0 {
		logging.Warn("Drugs without side effects",
			"count", len(report.DrugsWithoutSideEffects),
			"drugs", report.DrugsWithoutSideEffects,
		)
	}

	// Log drugs with no contraindications and no interactions
	if len(report.DrugsWithoutRules) > 0 {
		logging.Warn("Drugs without any rules",
			"count", len(report.DrugsWithoutRules),
			"drugs", report.DrugsWithoutRules,
		)
	}

	if report.FrequenciesOutOfRange > 0 {
		logging.Warn("Side effect frequencies outside [0,1]",
			"count", report.FrequenciesOutOfRange,
		)
	}

	// Atomic swap using injected data store (including report)
	s.dataStore.UpdateData(drugs, drugsMap, aliasIndex, report)

	metrics.KnowledgeBaseDrugs.Set(float64(len(drugs)))
	metrics.KnowledgeBaseLastReload.Set(float64(time.Now().Unix()))

	elapsed := time.Since(start)
	metrics.KnowledgeBaseReloadDuration.Set(elapsed.Seconds())
	logging.Info("Knowledge base reload completed", "duration", elapsed.String(), "drug_count", len(drugs))

	return nil
}

// startHealthMonitoring monitors the recency of knowledge base reloads
func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				lastUpdate := s.dataStore.GetLastUpdated()
				if time.Since(lastUpdate) > 25*time.Hour {
					logging.Warn("Knowledge base hasn't been reloaded in over 25 hours")
				}
			case <-s.done:
				return
			}
		}
	}()
}
