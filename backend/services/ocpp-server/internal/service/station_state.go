package service

import (
	"sync"
	"time"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/models"
)

// BootInfo is what a charge point reports in BootNotification.
type BootInfo struct {
	Vendor          string
	Model           string
	SerialNumber    string
	FirmwareVersion string
}

// StationState keeps track of in-memory station data for quick lookups.
type StationState struct {
	mu       sync.RWMutex
	stations map[string]*models.Station
}

// NewStationState returns state store.
func NewStationState() *StationState {
	return &StationState{
		stations: make(map[string]*models.Station),
	}
}

// RecordBoot stores identity reported at boot.
func (s *StationState) RecordBoot(stationID string, info BootInfo, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	station := s.station(stationID)
	station.Vendor = info.Vendor
	station.Model = info.Model
	station.SerialNumber = info.SerialNumber
	station.FirmwareVersion = info.FirmwareVersion
	station.LastBoot = at
	station.LastHeartbeat = at
}

// RecordHeartbeat stores the time of the last heartbeat.
func (s *StationState) RecordHeartbeat(stationID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.station(stationID).LastHeartbeat = at
}

// UpdateStatus applies a StatusNotification. Connector 0 is the charge point itself.
func (s *StationState) UpdateStatus(stationID string, connectorID int, status, errorCode string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	station := s.station(stationID)
	if connectorID == 0 {
		station.Status = status
		station.ErrorCode = errorCode
		return
	}
	station.Connectors[connectorID] = models.Connector{Status: status, ErrorCode: errorCode, UpdatedAt: at}
}

// RecordMeterValues stores the time of the last meter sample.
func (s *StationState) RecordMeterValues(stationID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.station(stationID).LastMeterValue = at
}

// RecordIdTag stores the last presented id tag.
func (s *StationState) RecordIdTag(stationID, idTag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.station(stationID).LastIdTag = idTag
}

// RecordTransaction counts a started transaction.
func (s *StationState) RecordTransaction(stationID, idTag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	station := s.station(stationID)
	station.LastIdTag = idTag
	station.TransactionsCount++
}

// Get returns a copy of one station.
func (s *StationState) Get(stationID string) (models.Station, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	station, ok := s.stations[stationID]
	if !ok {
		return models.Station{}, false
	}
	return copyStation(station), true
}

// Snapshot returns a copy of current state map.
func (s *StationState) Snapshot() map[string]models.Station {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]models.Station, len(s.stations))
	for id, station := range s.stations {
		result[id] = copyStation(station)
	}
	return result
}

func (s *StationState) station(stationID string) *models.Station {
	station, ok := s.stations[stationID]
	if !ok {
		station = &models.Station{ID: stationID, Connectors: make(map[int]models.Connector)}
		s.stations[stationID] = station
	}
	return station
}

func copyStation(station *models.Station) models.Station {
	out := *station
	out.Connectors = make(map[int]models.Connector, len(station.Connectors))
	for id, connector := range station.Connectors {
		out.Connectors[id] = connector
	}
	return out
}
