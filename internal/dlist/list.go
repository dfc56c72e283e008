// Package dlist implements the intrusive doubly linked list design note
// "Intrusive queues" calls for: explicit next/prev fields living inside the
// struct being linked, rather than a separate node allocation per list
// membership. The scheduler's work-list, the work-stealing policy's local
// ready list and each fiber's wait-queue are built on it.
//
// Grounded on the gVisor-style intrusive list in
// qxcheng-net-protocol/pkg/ilist/list.go: an embeddable Entry plus an
// Element interface. A struct that needs to belong to several lists at once
// (a Fiber belongs to at most one of Ready/Sleep/Wait/Terminated, plus
// independently to Work) embeds one Entry per list, wrapped in a distinct
// named type so each satisfies Element without colliding method sets.
package dlist

// Element is implemented by whatever is linked into a List.
type Element interface {
	Next() Element
	Prev() Element
	SetNext(Element)
	SetPrev(Element)
}

// Entry is the embeddable link state. Embed it (directly, or through a
// thin named wrapper when a struct needs more than one independent list
// membership) to make a type satisfy Element.
type Entry struct {
	next, prev Element
}

func (e *Entry) Next() Element     { return e.next }
func (e *Entry) Prev() Element     { return e.prev }
func (e *Entry) SetNext(v Element) { e.next = v }
func (e *Entry) SetPrev(v Element) { e.prev = v }

// List is a doubly linked list of Elements, threaded through the Entry each
// one embeds. The zero value is an empty list.
type List struct {
	head, tail Element
	length     int
}

func (l *List) Empty() bool    { return l.length == 0 }
func (l *List) Len() int       { return l.length }
func (l *List) Front() Element { return l.head }
func (l *List) Back() Element  { return l.tail }

// PushBack links e onto the tail of the list. e must not already be linked
// into this or any other list built over the same Entry.
func (l *List) PushBack(e Element) {
	e.SetNext(nil)
	e.SetPrev(l.tail)
	if l.tail != nil {
		l.tail.SetNext(e)
	} else {
		l.head = e
	}
	l.tail = e
	l.length++
}

// PushFront links e onto the head of the list.
func (l *List) PushFront(e Element) {
	e.SetPrev(nil)
	e.SetNext(l.head)
	if l.head != nil {
		l.head.SetPrev(e)
	} else {
		l.tail = e
	}
	l.head = e
	l.length++
}

// Remove unlinks e from the list. e must currently be linked into it.
func (l *List) Remove(e Element) {
	prev, next := e.Prev(), e.Next()
	if prev != nil {
		prev.SetNext(next)
	} else {
		l.head = next
	}
	if next != nil {
		next.SetPrev(prev)
	} else {
		l.tail = prev
	}
	e.SetNext(nil)
	e.SetPrev(nil)
	l.length--
}

// PopFront unlinks and returns the front element, or nil if the list is
// empty.
func (l *List) PopFront() Element {
	e := l.head
	if e == nil {
		return nil
	}
	l.Remove(e)
	return e
}

// PopBack unlinks and returns the back element, or nil if the list is
// empty.
func (l *List) PopBack() Element {
	e := l.tail
	if e == nil {
		return nil
	}
	l.Remove(e)
	return e
}
