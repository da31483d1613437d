// Package process runs a filter subprocess that is fed on stdin and read on
// stdout, such as an ffmpeg encoder consuming raw frames.
//
// Pipe wraps os/exec for that shape of child process:
//   - stdin exposed as a writer, closed to signal end of input
//   - stdout drained continuously into memory so writes never deadlock
//   - stderr streamed line by line to a logger with pluggable level parsing
//   - graceful stop with SIGINT and a configurable timeout
//   - force kill if the graceful stop times out
//
// Example:
//
//	args, err := ffmpeg.BuildArgs(params)
//	if err != nil {
//	    return err
//	}
//	p, err := process.NewPipeArgs("encoder", args, logger)
//	if err != nil {
//	    return err
//	}
//	p.SetLogParser(ffmpegLogger, ffmpeg.ParseLogLevel)
//	if err := p.Start(); err != nil {
//	    return err
//	}
//	p.Write(frameBytes)
//	packets := p.Drain()
//	code := p.Finish()
package process
