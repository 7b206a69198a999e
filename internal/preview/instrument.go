package preview

// Instrumentation is the first script a frame runs. It wraps the four
// console entry points so every call is forwarded to the host as
// {type: "console", level, args} before the original runs, and reports
// uncaught errors and unhandled rejections at error level. When a payload
// cannot be transferred the arguments are resent as strings.
const Instrumentation = `(function () {
  var post = function (level, args) {
    try {
      window.parent.postMessage({ type: 'console', level: level, args: args }, '*');
    } catch (e) {
      try {
        window.parent.postMessage({
          type: 'console',
          level: level,
          args: args.map(function (arg) {
            try { return String(arg); } catch (_) { return Object.prototype.toString.call(arg); }
          })
        }, '*');
      } catch (_) {}
    }
  };

  ['log', 'error', 'warn', 'info'].forEach(function (level) {
    var original = console[level];
    console[level] = function () {
      var args = Array.prototype.slice.call(arguments);
      post(level, args);
      if (typeof original === 'function') {
        return original.apply(console, args);
      }
    };
  });

  window.addEventListener('error', function (e) {
    post('error', [e.message + ' (at ' + e.filename + ':' + e.lineno + ':' + e.colno + ')']);
  });

  window.addEventListener('unhandledrejection', function (e) {
    post('error', ['Unhandled Promise Rejection: ' + e.reason]);
  });
})();`
