// Package wire defines the counterparty JSON protocol: request/response
// payloads exchanged over one persistent websocket per credential, plus
// push messages for open-contract settlement updates.
//
// The protocol does not echo a client correlation id on quote/buy
// responses. Responses on one connection arrive in submission order, which
// is why the connection layer matches them FIFO (see internal/conn).
package wire

import "encoding/json"

// AuthorizeRequest authenticates the connection for one credential.
type AuthorizeRequest struct {
	Authorize string `json:"authorize"`
}

// AuthorizeResponse carries the authorized account snapshot.
type AuthorizeResponse struct {
	LoginID  string  `json:"loginid"`
	Currency string  `json:"currency"`
	Balance  float64 `json:"balance"`
}

// ProposalRequest asks for a price quote.
type ProposalRequest struct {
	Proposal     int     `json:"proposal"`
	Amount       float64 `json:"amount"`
	Basis        string  `json:"basis"`
	ContractType string  `json:"contract_type"`
	Currency     string  `json:"currency"`
	Duration     int     `json:"duration"`
	DurationUnit string  `json:"duration_unit"`
	Symbol       string  `json:"symbol"`
	Barrier      string  `json:"barrier,omitempty"`
}

// ProposalResponse is the quote: an id to buy against, the ask price and
// the potential payout.
type ProposalResponse struct {
	ID       string  `json:"id"`
	AskPrice float64 `json:"ask_price"`
	Payout   float64 `json:"payout"`
	Spot     float64 `json:"spot"`
}

// BuyRequest accepts a quoted proposal at a price ceiling.
type BuyRequest struct {
	Buy   string  `json:"buy"`
	Price float64 `json:"price"`
}

// BuyResponse confirms the order and assigns the contract id used for
// settlement subscription.
type BuyResponse struct {
	ContractID   int64   `json:"contract_id"`
	BuyPrice     float64 `json:"buy_price"`
	Payout       float64 `json:"payout"`
	PurchaseTime int64   `json:"purchase_time"`
}

// OpenContractRequest subscribes to settlement pushes for a contract.
type OpenContractRequest struct {
	ProposalOpenContract int   `json:"proposal_open_contract"`
	ContractID           int64 `json:"contract_id"`
	Subscribe            int   `json:"subscribe"`
}

// OpenContractPush is one settlement update. IsSold marks the terminal
// push; Profit carries the signed settlement result.
type OpenContractPush struct {
	ContractID int64   `json:"contract_id"`
	Status     string  `json:"status"`
	IsSold     int     `json:"is_sold"`
	IsExpired  int     `json:"is_expired"`
	Profit     float64 `json:"profit"`
	EntrySpot  float64 `json:"entry_spot"`
	ExitSpot   float64 `json:"exit_tick"`
}

// TicksRequest subscribes to the quote stream for a symbol.
type TicksRequest struct {
	Ticks     string `json:"ticks"`
	Subscribe int    `json:"subscribe"`
}

// TickPush is one quote on a subscribed tick stream.
type TickPush struct {
	Symbol  string  `json:"symbol"`
	Quote   float64 `json:"quote"`
	Epoch   int64   `json:"epoch"`
	PipSize int     `json:"pip_size"`
}

// PingRequest is the keep-alive frame.
type PingRequest struct {
	Ping int `json:"ping"`
}

// ErrorInfo is the machine-readable error envelope carried by any
// response.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope is the minimal probe decoded from every inbound frame to route
// it: push vs response vs keep-alive.
type Envelope struct {
	MsgType              string          `json:"msg_type"`
	Error                *ErrorInfo      `json:"error"`
	Authorize            json.RawMessage `json:"authorize"`
	Proposal             json.RawMessage `json:"proposal"`
	Buy                  json.RawMessage `json:"buy"`
	ProposalOpenContract json.RawMessage `json:"proposal_open_contract"`
	Tick                 json.RawMessage `json:"tick"`
	Subscription         *Subscription   `json:"subscription"`
	EchoReq              *EchoReq        `json:"echo_req"`
}

// EchoReq is the subset of the echoed request used to key error responses
// for subscriptions.
type EchoReq struct {
	ContractID int64 `json:"contract_id"`
}

// Subscription carries the server-assigned stream id on subscribed pushes.
type Subscription struct {
	ID string `json:"id"`
}

const (
	MsgTypeAuthorize            = "authorize"
	MsgTypeProposal             = "proposal"
	MsgTypeBuy                  = "buy"
	MsgTypeProposalOpenContract = "proposal_open_contract"
	MsgTypeTick                 = "tick"
	MsgTypePing                 = "ping"
	MsgTypePong                 = "pong"
)
