/*
powernode - CT based power monitoring firmware
Copyright (C) 2024, The Meterwatch Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/godbus/dbus"
	"github.com/godbus/dbus/introspect"

	"github.com/meterwatch/powernode/internal/monitor"
)

const (
	dbusName = "org.meterwatch.powernode"
	dbusPath = "/org/meterwatch/powernode"
)

// service exposes the loop's state to the display, provisioning and
// network collaborators over D-Bus.
type service struct {
	orch *monitor.Orchestrator
}

func startService(orch *monitor.Orchestrator) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return err
	}
	reply, err := conn.RequestName(dbusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errors.New("name already taken")
	}

	s := &service{
		orch: orch,
	}
	conn.Export(s, dbusPath, dbusName)
	conn.Export(genIntrospectable(s), dbusPath, "org.freedesktop.DBus.Introspectable")
	return nil
}

func genIntrospectable(v interface{}) introspect.Introspectable {
	node := &introspect.Node{
		Interfaces: []introspect.Interface{{
			Name:    dbusName,
			Methods: introspect.Methods(v),
		}},
	}
	return introspect.NewIntrospectable(node)
}

// LatestReading returns the most recent reading as JSON.
func (s service) LatestReading() (string, *dbus.Error) {
	status := s.orch.Status()
	if !status.HaveReading {
		return "", makeDbusError(".LatestReading", errors.New("no reading produced yet"))
	}
	out, err := json.Marshal(status.Reading)
	if err != nil {
		return "", makeDbusError(".LatestReading", err)
	}
	return string(out), nil
}

// BufferedCount returns how many readings are waiting for delivery.
func (s service) BufferedCount() (int32, *dbus.Error) {
	return int32(s.orch.Status().Buffered), nil
}

// SetMainsVoltage overrides the configured mains voltage.
func (s service) SetMainsVoltage(v float64) *dbus.Error {
	if v <= 0 {
		return makeDbusError(".SetMainsVoltage", fmt.Errorf("voltage must be positive, got %f", v))
	}
	s.orch.Send(monitor.VoltageEvent{Volts: v})
	return nil
}

// SetMaintenanceMode suspends or resumes monitoring, used while
// provisioning or a firmware update runs.
func (s service) SetMaintenanceMode(on bool) *dbus.Error {
	s.orch.Send(monitor.MaintenanceEvent{On: on})
	return nil
}

// NetworkStateChanged reports connectivity from the network collaborator.
// state is one of "disconnected", "connecting" or "connected".
func (s service) NetworkStateChanged(state string) *dbus.Error {
	var link monitor.LinkState
	switch state {
	case "disconnected":
		link = monitor.Disconnected
	case "connecting":
		link = monitor.Connecting
	case "connected":
		link = monitor.Connected
	default:
		return makeDbusError(".NetworkStateChanged", fmt.Errorf("unknown network state %q", state))
	}
	s.orch.Send(monitor.LinkEvent{State: link})
	return nil
}

func makeDbusError(name string, err error) *dbus.Error {
	return &dbus.Error{
		Name: dbusName + name,
		Body: []interface{}{err.Error()},
	}
}
