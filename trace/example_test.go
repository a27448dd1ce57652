package trace_test

import (
	"os"
	"time"

	"github.com/joeycumines/go-aokernel"
	"github.com/joeycumines/go-aokernel/trace"
)

// Demonstrates writing the trace of a kernel as JSON lines, with the time
// field pinned for the sake of the example output.
func ExampleJSONWriter() {
	w := trace.NewJSONWriter(os.Stdout)
	sink := aokernel.TraceSinkFunc(func(rec aokernel.TraceRecord) {
		rec.Time = time.Unix(0, 0)
		w.Emit(rec)
	})
	k, err := aokernel.New(aokernel.WithTraceSink(sink))
	if err != nil {
		panic(err)
	}
	a := k.NewActive(aokernel.HandlerFuncs{})
	a.Start(1, 0, nil)
	a.Post(&aokernel.Event{Sig: aokernel.UserSig}, 0)

	//output:
	//{"seq":1,"time":"1970-01-01T00:00:00Z","kind":"active_add","prio":1}
	//{"seq":2,"time":"1970-01-01T00:00:00Z","kind":"post","prio":1,"sig":4,"nfree":0,"nmin":0}
	//{"seq":3,"time":"1970-01-01T00:00:00Z","kind":"dispatch","prio":1,"sig":4,"nfree":1}
}
