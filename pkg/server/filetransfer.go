package server

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	log "github.com/sirupsen/logrus"
)

// ContentDigest computes the transfer checksum for a payload. The digest
// travels in the optional FILE/FILEOFFER hash token; the receiving side
// verifies it before accepting the file, the server only forwards it.
func ContentDigest(data []byte) string {
	return "xxh64:" + strconv.FormatUint(xxhash.Sum64(data), 16)
}

// VerifyDigest checks a payload against a digest produced by ContentDigest.
func VerifyDigest(data []byte, digest string) bool {
	return ContentDigest(data) == strings.ToLower(strings.TrimSpace(digest))
}

// handleFile runs the single-shot file-transfer sub-protocol: offer the
// target, acknowledge the sender, then switch the read loop to a raw
// fixed-length read of the payload before returning to line mode. The
// returned bool requests connection termination (the stream is beyond
// recovery after a short payload read).
func (s *Server) handleFile(c *Client, cmd FileOffer) bool {
	target, ok := s.dir.LookupConnection(cmd.Target)
	if !ok {
		c.Send("ERROR %s User %s not found\n", ErrNotFound, cmd.Target)
		return false
	}

	if max := s.cfg.Transfer.MaxBytes; max > 0 && cmd.Size > max {
		c.Send("ERROR %s File exceeds the %d byte limit\n", ErrMalformed, max)
		return false
	}

	offer := fmt.Sprintf("%s %s %s %d", EvtFileOffer, c.Nick(), cmd.Filename, cmd.Size)
	if cmd.Hash != "" {
		offer += " " + cmd.Hash
	}
	target.Send("%s\n", offer)

	c.Send("OK FILE Send file data now\n")

	// No further line commands can interleave until exactly Size bytes
	// arrive. A stalled sender blocks this worker, nobody else.
	data, err := c.ReadFull(cmd.Size)
	if err != nil {
		log.Errorf("[FILE] %s -> %s payload read failed: %v", c.Nick(), cmd.Target, err)
		c.Send("ERROR %s File transfer failed: short read\n", ErrTransferFailed)
		return true
	}

	if err := target.SendFileData(data); err != nil {
		log.Errorf("[FILE] forwarding to %s failed: %v", cmd.Target, err)
		c.Send("ERROR %s File transfer failed: %v\n", ErrTransferFailed, err)
		return false
	}

	log.Infof("[FILE] %s sent %s (%d bytes) to %s", c.Nick(), cmd.Filename, cmd.Size, target.Nick())
	c.Send("OK FILE File sent to %s\n", target.Nick())
	return false
}
