// Package manifest loads system declarations written in CUE or HCL.
//
// A manifest directory holds one CUE package whose top-level "system"
// struct maps system names to their scheduling constraints:
//
//	system: physics: {
//		event:    "fixed"
//		priority: 0
//		after: ["input"]
//	}
//
// The same declaration as an HCL block, where other systems are referenced
// through the system object so that misspelled names fail to load:
//
//	system "physics" {
//	  event    = "fixed"
//	  priority = 0
//	  after    = [system.input]
//	}
//
// A directory holds one format or the other. All fields are optional.
// Systems keep their declaration order, which becomes the registration
// order used to break ties when scheduling. HCL files are read in file
// name order.
package manifest
