// Package compiler loads workflow definitions from YAML or CUE and checks
// them before a run.
//
// Both formats decode into the same ordered tree so event order, action
// order and rule order always follow the source file. A workflow maps each
// event name to a list of actions:
//
//	start:
//	  - name: fetch
//	    cmd: curl -sI {url}
//	    store:
//	      - server: 'Server: (.+)'
//	    events:
//	      - 'HTTP/\S+ 200': [crawl]
//
// Rule blocks may be written as a list of single-key maps or as one map;
// either way declaration order is kept.
package compiler
