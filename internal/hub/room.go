package hub

type roomState struct {
	endpoints map[Endpoint]struct{}
	released  bool
}

type roomOp struct {
	fn    func(*roomState)
	reply chan struct{}
}

// room serializes every mutation and fan-out of one session on a single
// goroutine. Once released it stops accepting ops and do reports false.
type room struct {
	id   string
	ops  chan roomOp
	done chan struct{}
}

func newRoom(id string) *room {
	r := &room{
		id:   id,
		ops:  make(chan roomOp),
		done: make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *room) run() {
	st := &roomState{endpoints: make(map[Endpoint]struct{})}
	for op := range r.ops {
		op.fn(st)
		if st.released {
			close(r.done)
			close(op.reply)
			return
		}
		close(op.reply)
	}
}

// do runs fn on the room goroutine and waits for it
func (r *room) do(fn func(*roomState)) bool {
	op := roomOp{fn: fn, reply: make(chan struct{})}
	select {
	case r.ops <- op:
	case <-r.done:
		return false
	}
	<-op.reply
	return true
}
