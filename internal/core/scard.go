package core

import (
	"errors"

	"github.com/ebfe/scard"
)

// EstablishContext opens a PC/SC context through pcsclite / winscard.
func (DefaultContextFactory) EstablishContext() (SmartCardContext, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, err
	}
	return &scardContext{ctx: ctx}, nil
}

type scardContext struct {
	ctx *scard.Context
}

func (c *scardContext) ListReaders() ([]string, error) {
	return c.ctx.ListReaders()
}

func (c *scardContext) CardPresent(reader string) (bool, error) {
	rs := []scard.ReaderState{{Reader: reader, CurrentState: scard.StateUnaware}}
	if err := c.ctx.GetStatusChange(rs, 0); err != nil {
		if errors.Is(err, scard.ErrTimeout) {
			return false, nil
		}
		return false, err
	}
	state := rs[0].EventState
	return state&scard.StatePresent != 0 && state&scard.StateMute == 0, nil
}

func (c *scardContext) Connect(reader string, shareMode uint32, protocol uint32) (SmartCard, error) {
	card, err := c.ctx.Connect(reader, scard.ShareMode(shareMode), scard.Protocol(protocol))
	if err != nil {
		return nil, err
	}
	return &scardCard{card: card}, nil
}

func (c *scardContext) Release() error {
	return c.ctx.Release()
}

type scardCard struct {
	card *scard.Card
}

func (c *scardCard) Transmit(cmd []byte) ([]byte, error) {
	return c.card.Transmit(cmd)
}

func (c *scardCard) Status() (SmartCardStatus, error) {
	st, err := c.card.Status()
	if err != nil {
		return SmartCardStatus{}, err
	}
	return SmartCardStatus{
		Reader:         st.Reader,
		State:          uint32(st.State),
		ActiveProtocol: uint32(st.ActiveProtocol),
		Atr:            st.Atr,
	}, nil
}

func (c *scardCard) Disconnect(disposition uint32) error {
	return c.card.Disconnect(scard.Disposition(disposition))
}
