package rpc

import (
	"net/netip"

	"github.com/SeedCredits/raiblocks/node"
	"github.com/SeedCredits/raiblocks/types"
)

func (h *handler) fieldEndpoint() (netip.AddrPort, bool) {
	addressText, ok := h.fieldString("address")
	if !ok {
		return netip.AddrPort{}, false
	}
	address, err := netip.ParseAddr(addressText)
	if err != nil {
		h.err("Invalid address")
		return netip.AddrPort{}, false
	}
	port, ok := h.fieldPort("port")
	if !ok {
		return netip.AddrPort{}, false
	}
	return netip.AddrPortFrom(address, port), true
}

func (h *handler) keepalive() {
	if !h.controlled() {
		return
	}
	endpoint, ok := h.fieldEndpoint()
	if !ok {
		return
	}
	h.node.Keepalive(endpoint)
	h.ok(map[string]any{})
}

func (h *handler) bootstrap() {
	if !h.controlled() {
		return
	}
	endpoint, ok := h.fieldEndpoint()
	if !ok {
		return
	}
	h.node.Bootstrap(endpoint)
	h.ok(map[string]any{"success": ""})
}

func (h *handler) peers() {
	peers := []string{}
	for _, endpoint := range h.node.Peers.List() {
		peers = append(peers, endpoint.String())
	}
	h.ok(map[string]any{"peers": peers})
}

func (h *handler) version() {
	h.ok(map[string]any{
		"rpc_version":   "1",
		"store_version": formatUint(h.node.StoreVersion()),
		"node_vendor":   node.Vendor,
	})
}

func (h *handler) stop() {
	if !h.controlled() {
		return
	}
	h.ok(map[string]any{"success": ""})
	go func() {
		h.srv.Stop()
		h.node.Stop()
	}()
}

func (h *handler) workGenerate() {
	if !h.controlled() {
		return
	}
	hash, ok := h.fieldHex("hash", "Bad block hash")
	if !ok {
		return
	}
	work, generated := h.node.Work.Generate(hash)
	if !generated {
		h.err("Cancelled")
		return
	}
	h.ok(map[string]any{"work": types.WorkToString(work)})
}

func (h *handler) workCancel() {
	if !h.controlled() {
		return
	}
	hash, ok := h.fieldHex("hash", "Bad block hash")
	if !ok {
		return
	}
	h.node.Work.Cancel(hash)
	h.ok(map[string]any{})
}
