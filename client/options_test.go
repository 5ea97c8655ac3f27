package client

import "testing"

func TestWithDefaultsMultiplexAndReconnectionDefaultTrue(t *testing.T) {
	o := Options{}.WithDefaults()
	if !o.Multiplex {
		t.Fatal("Multiplex should default to true")
	}
	if !o.Reconnection {
		t.Fatal("Reconnection should default to true")
	}
}

func TestWithMultiplexFalseSurvivesDefaults(t *testing.T) {
	var o Options
	WithMultiplex(false)(&o)
	o = o.WithDefaults()
	if o.Multiplex {
		t.Fatal("explicit Multiplex(false) must not be overridden by WithDefaults")
	}
}

func TestWithReconnectionFalseSurvivesDefaults(t *testing.T) {
	var o Options
	WithReconnection(false)(&o)
	o = o.WithDefaults()
	if o.Reconnection {
		t.Fatal("explicit Reconnection(false) must not be overridden by WithDefaults")
	}
}
