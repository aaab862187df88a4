// Package capture runs the single OS-level sniff session and feeds raw
// frames into a bounded queue (spec §4.E). Backpressure is drop-oldest:
// the classifier must never be capture's reason to stall.
package capture

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"go.uber.org/zap"
)

// Queue is the bounded packet channel shared between capture and
// classify. Overflow drops the oldest buffered frame and increments
// Dropped (spec §4.E: "on overflow the oldest packets are dropped with a
// counter increment").
type Queue struct {
	ch      chan []byte
	Dropped atomic.Uint64
}

// NewQueue allocates a bounded queue of the given capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan []byte, capacity)}
}

// Push enqueues a frame, dropping the oldest buffered one if full.
func (q *Queue) Push(frame []byte) {
	select {
	case q.ch <- frame:
		return
	default:
	}
	select {
	case <-q.ch:
		q.Dropped.Add(1)
	default:
	}
	select {
	case q.ch <- frame:
	default:
	}
}

// Chan exposes the receive side for the classifier's drain loop.
func (q *Queue) Chan() <-chan []byte { return q.ch }

// BPFFilter is the filter expression from spec §4.E: keep ARP everywhere,
// and every other frame except the host's own direct traffic.
func BPFFilter(hostIP string) string {
	return fmt.Sprintf("(not arp and host not %s) or arp", hostIP)
}

// Run opens iface for live capture and pushes every received frame onto q
// until window elapses or ctx is canceled, then closes the handle and
// returns. The engine launches it via internal/tasks, which calls it
// again for the next window (the "30-s rolling restart") and logs and
// retries a failed OpenLive/SetBPFFilter rather than treating it as fatal.
func Run(ctx context.Context, iface, hostIP string, window time.Duration, q *Queue, log *zap.Logger) error {
	handle, err := pcap.OpenLive(iface, 65536, true, pcap.BlockForever)
	if err != nil {
		return fmt.Errorf("opening live capture on %s: %w", iface, err)
	}
	defer handle.Close()

	if err := handle.SetBPFFilter(BPFFilter(hostIP)); err != nil {
		return fmt.Errorf("setting bpf filter: %w", err)
	}

	src := gopacket.NewPacketSource(handle, handle.LinkType())
	src.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}
	in := src.Packets()

	deadline := time.After(window)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			return nil // supervisor task calls Run again for the next window
		case packet, ok := <-in:
			if !ok {
				return nil
			}
			data := packet.Data()
			cp := make([]byte, len(data))
			copy(cp, data)
			q.Push(cp)
		}
	}
}
