// Package eltako connects an Eltako RS485 bus (or an EnOcean radio
// transceiver) to the Gray Logic MQTT bus.
//
// The bridge owns the serial connection through a bus.Session and
// translates in both directions:
//   - Decoded telegrams become retained state messages on
//     graylogic/state/eltako/{address}
//   - Telegrams no configured device can decode are published on
//     graylogic/event/eltako/unresolved and recorded for discovery
//   - Commands on graylogic/command/eltako/{device_id} are encoded with
//     the device's sender profile and acknowledged on
//     graylogic/ack/eltako/{device_id}
//
// Health is published every health_interval seconds on
// graylogic/health/eltako; the same topic carries the MQTT Last Will.
//
// # Reconnection
//
// When the serial port fails the session faults and the bridge reopens
// it with exponential backoff (x1.5 per attempt, capped at two minutes).
//
// # Heating actuators
//
// FAE14 and similar A5-10-06 actuators fall back to their own program
// when the room controller goes quiet, so the last commanded set point is
// re-sent every 50 seconds.
//
// # Usage
//
//	bcfg := eltako.FromConfig(cfg, version)
//	b, err := eltako.NewBridge(eltako.BridgeOptions{
//	    Config:     bcfg,
//	    Session:    session,
//	    Directory:  dir,
//	    MQTTClient: mqttClient,
//	    Dial:       eltako.SerialDialer(bcfg, nil, logger),
//	})
//	if err != nil {
//	    return err
//	}
//	if err := b.Start(ctx); err != nil {
//	    return err
//	}
//	defer b.Stop()
package eltako
