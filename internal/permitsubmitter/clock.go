package permitsubmitter

import "time"

const defaultReceiptTimeout = 2 * time.Minute

func nowUnix() int64 { return time.Now().Unix() }
