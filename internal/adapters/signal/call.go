package signal

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/domain"
)

func (ctl *Controller) handleInitiate(
	sess *core.Session,
	conn *wsConn,
	data []byte,
) {
	var p struct {
		Type         string                    `json:"type"`
		CalleeUserID string                    `json:"calleeUserId"`
		Offer        webrtc.SessionDescription `json:"offer"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CalleeUserID == "" || p.Offer.SDP == "" {
		log.Warn().Str("module", "signal").Msg("bad initiate payload")
		return
	}

	id, err := ctl.Calls.Initiate(sess, domain.UserID(p.CalleeUserID), p.Offer)
	if err != nil {
		ctl.sendErr(conn, "call:initiate", reasonOf(err))
		return
	}
	ctl.sendJSON(conn, struct {
		Type   string        `json:"type"`
		CallID domain.CallID `json:"callId"`
	}{"call:initiated", id})
}

func (ctl *Controller) handleAnswer(
	sess *core.Session,
	conn *wsConn,
	data []byte,
) {
	var p struct {
		Type   string                    `json:"type"`
		CallID string                    `json:"callId"`
		Answer webrtc.SessionDescription `json:"answer"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" || p.Answer.SDP == "" {
		log.Warn().Str("module", "signal").Msg("bad answer payload")
		return
	}

	if err := ctl.Calls.Answer(sess, domain.CallID(p.CallID), p.Answer); err != nil {
		ctl.sendErr(conn, "call:answer", reasonOf(err))
	}
}

func (ctl *Controller) handleCandidate(
	sess *core.Session,
	data []byte,
) {
	var p struct {
		Type      string                  `json:"type"`
		CallID    string                  `json:"callId"`
		Candidate webrtc.ICECandidateInit `json:"candidate"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		log.Warn().Str("module", "signal").Msg("bad candidate payload")
		return
	}
	// Never an error toward the client: late candidates are expected.
	_ = ctl.Calls.RelayCandidate(domain.CallID(p.CallID), sess, p.Candidate)
}

func (ctl *Controller) handleRenegotiate(
	sess *core.Session,
	conn *wsConn,
	data []byte,
) {
	var p struct {
		Type        string                    `json:"type"`
		CallID      string                    `json:"callId"`
		Description webrtc.SessionDescription `json:"description"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" || p.Description.SDP == "" {
		log.Warn().Str("module", "signal").Msg("bad renegotiate payload")
		return
	}

	if err := ctl.Calls.Renegotiate(domain.CallID(p.CallID), sess, p.Description); err != nil {
		ctl.sendErr(conn, "call:renegotiate", reasonOf(err))
	}
}

func (ctl *Controller) handleEnd(
	sess *core.Session,
	data []byte,
) {
	var p struct {
		Type   string `json:"type"`
		CallID string `json:"callId"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		log.Warn().Str("module", "signal").Msg("bad end payload")
		return
	}
	reason := domain.EndReason(p.Reason)
	if p.Reason == "" {
		reason = domain.EndHangup
	}
	if !domain.ValidEndReason(reason) {
		log.Warn().Str("module", "signal").Str("reason", p.Reason).Msg("bad end reason")
		return
	}
	ctl.Calls.End(domain.CallID(p.CallID), reason)
}
