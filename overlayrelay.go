// Package overlayrelay relays messages from producers to the one consumer of
// a namespace over websockets.
//
//     overlayrelay -addr=127.0.0.1:3001 -namespaces=roomA,roomB
//
// Namespaces come from a fixed allow-list set at startup. Anything else is
// refused: websockets are closed with status 1008 (policy violation) and
// page requests get a 403.
//
// Connect a consumer (the overlay) by opening a websocket to
//     ws://localhost:3001/roomA/overlay
//
// Connect a producer (the extension) by opening a websocket to
//     ws://localhost:3001/roomA/extension
//
// Every frame a producer sends becomes the namespace's last message and is
// forwarded byte-for-byte to the current consumer, if any. A namespace has a
// single consumer slot; a new consumer takes it over. Newly connected
// consumers and producers immediately receive the last message, so a
// reconnecting overlay recovers the current state. Frames sent by consumers
// are ignored.
//
// Every connection is pinged once per ping period. A connection that has not
// answered the previous ping by the next sweep is terminated.
//
// Nothing survives a restart.
//
// Non-websocket GET requests to /{namespace}/overlay are served an HTML page
// that connects to that path and shows the latest message.
//     http://localhost:3001/roomA/overlay
package main

import (
	"html/template"
)

type templateArgs struct {
	Namespace, Path string
}

var overlayTemplate = template.Must(template.New("overlayTemplate").Parse(`
<html>
<head>
<title>overlay {{.Namespace}}</title>
<script type="text/javascript">
    (function() {
    var path = {{.Path}};
    var retry = 1000;

    function show(text) {
        document.getElementById("content").textContent = text;
    }

    function connect() {
        var scheme = location.protocol === "https:" ? "wss://" : "ws://";
        var conn = new WebSocket(scheme + location.host + path);
        conn.onopen = function() {
            retry = 1000;
        };
        conn.onmessage = function(evt) {
            if (typeof evt.data === "string") {
                show(evt.data);
            } else {
                evt.data.text().then(show);
            }
        };
        conn.onclose = function(evt) {
            if (evt.code === 1008) {
                show("Connection refused: " + evt.reason);
                return;
            }
            setTimeout(connect, retry);
            retry = Math.min(retry * 2, 30000);
        };
    }

    if (window["WebSocket"]) {
        window.addEventListener("load", connect);
    } else {
        window.addEventListener("load", function() {
            show("Your browser does not support WebSockets.");
        });
    }
    })();
</script>
<style type="text/css">
html, body {
    margin: 0;
    padding: 0;
    background: transparent;
    overflow: hidden;
}

#content {
    padding: 0.5em;
    font-family: sans-serif;
    white-space: pre-wrap;
}
</style>
</head>
<body>
<div id="content"></div>
</body>
</html>
`))
