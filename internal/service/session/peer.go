package session

import (
	"github.com/iamasit07/snakesync/internal/protocol"
	"github.com/iamasit07/snakesync/internal/transport/syncchan"
)

const outboundBuffer = 64

// peer owns one channel and a write pump, so a blocked socket only backs up its own queue.
type peer struct {
	id   string
	name string
	ch   syncchan.Channel
	out  chan protocol.Packet
}

func newPeer(id, name string, ch syncchan.Channel) *peer {
	if id == "" {
		id = ch.RemoteAddr()
	}
	return &peer{id: id, name: name, ch: ch, out: make(chan protocol.Packet, outboundBuffer)}
}

// enqueue never blocks. A full queue means the peer is stuck; the caller prunes it.
func (p *peer) enqueue(pkt protocol.Packet) bool {
	select {
	case <-p.ch.Done():
		return false
	default:
	}
	select {
	case p.out <- pkt:
		return true
	default:
		return false
	}
}

func (p *peer) writePump() {
	for {
		select {
		case pkt := <-p.out:
			if err := p.ch.Send(pkt); err != nil {
				p.ch.Close()
				return
			}
		case <-p.ch.Done():
			return
		}
	}
}

func (p *peer) label() string {
	if p.name != "" {
		return p.name
	}
	return p.id
}
