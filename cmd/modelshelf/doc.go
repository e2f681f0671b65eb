// Command modelshelf is the CLI front-end for the modelshelf daemon. It talks
// to modelshelfd over a Unix socket for scan control, library browsing, and
// cache maintenance, and manages the daemon process lifecycle.
package main
