// Package controller runs the single control loop that owns all mutable
// homesec state.
//
// MQTT deliveries arrive on paho goroutines and are copied into a bounded
// inbox. Every iteration the loop:
//
//  1. drains the inbox (capacity changes and actuator commands)
//  2. samples the doorway sensors if the sampling interval elapsed, then
//     publishes occupancy status on change or heartbeat
//  3. evaluates the capacity policy (blink publish, display render)
//  4. advances a running light blink sequence
//  5. stores a read-only Snapshot for the HTTP panel
//
// Nothing outside the loop mutates counter, policy or actuator state.
package controller
