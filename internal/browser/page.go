package browser

import (
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// A Page is one rendered browser tab. Element waits (bounded) for a match to
// appear; Elements and Has query the current DOM without waiting.
type Page interface {
	// Navigate loads url and waits for the load event, all within timeout.
	Navigate(url string, timeout time.Duration) error
	Element(sel string, timeout time.Duration) (Element, error)
	Elements(sel string) ([]Element, error)
	Has(sel string) (bool, error)
	// ScrollToBottom jumps the viewport to the current bottom of the document.
	ScrollToBottom() error
	// ScrollHeight reports the current total document height.
	ScrollHeight() (int, error)
	URL() (string, error)
}

// An Element is one matched DOM node.
type Element interface {
	HTML() (string, error)
	Hover() error
	Click() error
	Element(sel string, timeout time.Duration) (Element, error)
	Elements(sel string) ([]Element, error)
	Has(sel string) (bool, error)
}

type page struct {
	p *rod.Page
}

func (p *page) Navigate(url string, timeout time.Duration) error {
	pp := p.p.Timeout(timeout)
	if err := pp.Navigate(url); err != nil {
		return err
	}
	return pp.WaitLoad()
}

func (p *page) Element(sel string, timeout time.Duration) (Element, error) {
	el, err := p.p.Timeout(timeout).Element(sel)
	if err != nil {
		return nil, err
	}
	return &element{el: el.CancelTimeout()}, nil
}

func (p *page) Elements(sel string) ([]Element, error) {
	els, err := p.p.Elements(sel)
	if err != nil {
		return nil, err
	}
	return wrapElements(els), nil
}

func (p *page) Has(sel string) (bool, error) {
	has, _, err := p.p.Has(sel)
	return has, err
}

func (p *page) ScrollToBottom() error {
	_, err := p.p.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

func (p *page) ScrollHeight() (int, error) {
	res, err := p.p.Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (p *page) URL() (string, error) {
	info, err := p.p.Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

type element struct {
	el *rod.Element
}

func (e *element) HTML() (string, error) {
	return e.el.HTML()
}

func (e *element) Hover() error {
	return e.el.Hover()
}

func (e *element) Click() error {
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *element) Element(sel string, timeout time.Duration) (Element, error) {
	el, err := e.el.Timeout(timeout).Element(sel)
	if err != nil {
		return nil, err
	}
	return &element{el: el.CancelTimeout()}, nil
}

func (e *element) Elements(sel string) ([]Element, error) {
	els, err := e.el.Elements(sel)
	if err != nil {
		return nil, err
	}
	return wrapElements(els), nil
}

func (e *element) Has(sel string) (bool, error) {
	has, _, err := e.el.Has(sel)
	return has, err
}

func wrapElements(els rod.Elements) []Element {
	wrapped := make([]Element, 0, len(els))
	for _, el := range els {
		wrapped = append(wrapped, &element{el: el})
	}
	return wrapped
}
