// Package mqtt provides MQTT client connectivity for the Eltako bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after a reconnect
//   - Last Will and Testament (LWT) for offline detection
//   - Topic builders for the bridge's flat topic scheme
//
// # Architecture
//
// The Gray Logic Core talks to protocol bridges over MQTT. This bridge
// publishes decoded device state and health, and receives commands:
//
//	Gray Logic Core ↔ MQTT Broker ↔ Eltako bridge ↔ RS485 bus
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, &mqtt.Will{Topic: mqtt.Topics{}.Health(), Payload: offline, QoS: 1})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        return handleCommand(mqtt.Leaf(topic), payload)
//	    })
package mqtt
